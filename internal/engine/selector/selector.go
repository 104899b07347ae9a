// Package selector implements the Subtopic Selector (C5): picks the next
// subtopic when the caller does not pin one.
package selector

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/models"
)

// Choose returns the subtopic with the most unseen material for learnerID
// within (subject, grade, topic), tiebroken by curricular sequence then
// lexicographically. Returns "" if the catalog is empty for that scope.
func Choose(ctx context.Context, st store.Store, learnerID uuid.UUID, subject string, grade int, topic string) (string, error) {
	catalog, err := st.ListSubtopics(ctx, subject, grade, topic)
	if err != nil {
		return "", err
	}
	if len(catalog) == 0 {
		return "", nil
	}

	type scored struct {
		entry   models.Subtopic
		unseen  int
	}

	ranked := make([]scored, 0, len(catalog))
	for _, entry := range catalog {
		total, err := st.CountQuestions(ctx, store.CountQuestionsParams{
			Subject: subject, Grade: &grade, Topic: topic, Subtopic: entry.Name,
		})
		if err != nil {
			return "", err
		}
		seenInScope, err := st.GetLearnerSeenCount(ctx, learnerID, store.CountQuestionsParams{
			Subject: subject, Grade: &grade, Topic: topic, Subtopic: entry.Name,
		})
		if err != nil {
			return "", err
		}
		unseen := total - seenInScope
		if unseen < 0 {
			unseen = 0
		}
		ranked = append(ranked, scored{entry: entry, unseen: unseen})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].unseen != ranked[j].unseen {
			return ranked[i].unseen > ranked[j].unseen
		}
		if ranked[i].entry.SequenceOrder != ranked[j].entry.SequenceOrder {
			return ranked[i].entry.SequenceOrder < ranked[j].entry.SequenceOrder
		}
		return ranked[i].entry.Name < ranked[j].entry.Name
	})

	return ranked[0].entry.Name, nil
}
