// Package validate performs structural and semantic admission checks on
// candidate questions. It is pure: it never touches the store.
package validate

import (
	"strings"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/models"
)

// Candidate checks c against the admission rules. It returns a
// *apperr.Error with KindValidationFailure and a distinct subkind on the
// first violation found, or nil if c is admissible.
func Candidate(c models.Candidate) error {
	if len(c.Options) != 4 {
		return apperr.Validation(apperr.SubkindMalformedOptions, "exactly four options required")
	}

	trimmed := make([]string, len(c.Options))
	for i, o := range c.Options {
		trimmed[i] = strings.TrimSpace(o)
		if trimmed[i] == "" {
			return apperr.Validation(apperr.SubkindMalformedOptions, "options must be non-empty")
		}
	}
	seen := make(map[string]bool, len(trimmed))
	for _, o := range trimmed {
		if seen[o] {
			return apperr.Validation(apperr.SubkindMalformedOptions, "options must be pairwise distinct")
		}
		seen[o] = true
	}

	matched := false
	for _, o := range c.Options {
		if o == c.CorrectAnswer {
			matched = true
			break
		}
	}
	if !matched {
		return apperr.Validation(apperr.SubkindAnswerNotInOptions, "correct_answer must equal one option")
	}

	if strings.TrimSpace(c.Stem) == "" {
		return apperr.Validation(apperr.SubkindEmptyStem, "stem must be non-empty")
	}

	if !models.ValidDifficulty(c.Difficulty) {
		return apperr.Validation(apperr.SubkindBadDifficulty, "difficulty must be easy, medium or hard")
	}

	if c.Grade < 0 || c.Grade > 12 {
		return apperr.Validation(apperr.SubkindBadGrade, "grade must be in 0..12")
	}

	if strings.TrimSpace(c.Subject) == "" || strings.TrimSpace(c.Topic) == "" || strings.TrimSpace(c.Subtopic) == "" {
		return apperr.Validation(apperr.SubkindMissingMetadata, "subject, topic and subtopic are required")
	}

	return nil
}
