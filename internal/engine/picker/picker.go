// Package picker implements the Batch Picker (C7): assembles an unseen,
// difficulty-ranked batch for a caller, triggering generation when stock
// runs low.
package picker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"noble-ngs-quiz/internal/engine/coordinator"
	"noble-ngs-quiz/internal/engine/difficulty"
	"noble-ngs-quiz/internal/engine/normalize"
	"noble-ngs-quiz/internal/engine/selector"
	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/metrics"
	"noble-ngs-quiz/internal/models"
)

// CurriculumCatalog resolves a default topic when the caller omits one.
type CurriculumCatalog interface {
	FirstTopic(ctx context.Context, subject string, grade int) (string, error)
}

// Picker is C7.
type Picker struct {
	store       store.Store
	catalog     CurriculumCatalog
	coordinator *coordinator.Coordinator
	minStock    int
	syncWait    time.Duration
}

func New(st store.Store, catalog CurriculumCatalog, coord *coordinator.Coordinator, minStock int, syncWait time.Duration) *Picker {
	return &Picker{store: st, catalog: catalog, coordinator: coord, minStock: minStock, syncWait: syncWait}
}

// Result is the picker's output before session attachment, which happens
// in the caller path via the Session Tracker.
type Result struct {
	Batch            []models.Question
	ResolvedSubtopic string
	Deficit          int
}

// Fetch runs the C5 -> C6 -> C4 -> C8 pipeline for one request.
func (p *Picker) Fetch(ctx context.Context, learnerID uuid.UUID, grade int, subject, topic, subtopic string, limit int) (Result, error) {
	// Query-time filters must apply the same normalization as write-time
	// admission, or a caller's differently-cased input silently matches
	// nothing.
	subject = normalize.Metadata(subject)
	topic = normalize.Metadata(topic)
	subtopic = normalize.Metadata(subtopic)

	if topic == "" && p.catalog != nil {
		resolved, err := p.catalog.FirstTopic(ctx, subject, grade)
		if err != nil {
			return Result{}, err
		}
		topic = normalize.Metadata(resolved)
	}

	if subtopic == "" {
		resolved, err := selector.Choose(ctx, p.store, learnerID, subject, grade, topic)
		if err != nil {
			return Result{}, err
		}
		subtopic = resolved
	}

	totalAttempts, totalCorrect, err := p.store.LearnerAttemptSummary(ctx, learnerID)
	if err != nil {
		return Result{}, err
	}
	preference := difficulty.Preference(totalAttempts, totalCorrect)

	seen, err := p.store.GetLearnerSeen(ctx, learnerID)
	if err != nil {
		return Result{}, err
	}

	var batch []models.Question
	remaining := limit
	for _, d := range preference {
		if remaining <= 0 {
			break
		}
		items, err := p.store.ListQuestions(ctx, store.ListQuestionsParams{
			Subject:             subject,
			Grade:               &grade,
			Topic:               topic,
			Subtopic:            subtopic,
			Difficulties:        []models.Difficulty{d},
			ExcludeFingerprints: seen,
			Limit:               remaining,
		})
		if err != nil {
			return Result{}, err
		}
		batch = append(batch, items...)
		remaining -= len(items)
	}

	stock, err := p.store.CountQuestions(ctx, store.CountQuestionsParams{
		Subject: subject, Grade: &grade, Topic: topic, Subtopic: subtopic,
	})
	if err != nil {
		return Result{}, err
	}

	deficit := p.minStock - stock
	if deficit < 0 {
		deficit = 0
	}

	var jobKey coordinator.JobKey
	if deficit > 0 && p.coordinator != nil {
		preferredDifficulty := models.DifficultyEasy
		if len(preference) > 0 {
			preferredDifficulty = preference[0]
		}
		jobKey = coordinator.JobKey{Subject: subject, Topic: topic, Subtopic: subtopic, Difficulty: preferredDifficulty, Grade: grade}
		p.coordinator.Submit(jobKey, deficit)

		if len(batch) == 0 && stock == 0 && p.syncWait > 0 {
			p.coordinator.Wait(ctx, jobKey, p.syncWait)
			// Re-query once after a completion signal (or timeout); the
			// picker still returns promptly either way.
			refreshed, err := p.store.ListQuestions(ctx, store.ListQuestionsParams{
				Subject: subject, Grade: &grade, Topic: topic, Subtopic: subtopic,
				Difficulties: preference, ExcludeFingerprints: seen, Limit: limit,
			})
			if err == nil {
				batch = refreshed
			}
		}
	}

	metrics.QuestionsFetchedTotal.WithLabelValues(subject).Add(float64(len(batch)))

	return Result{Batch: batch, ResolvedSubtopic: subtopic, Deficit: deficit}, nil
}
