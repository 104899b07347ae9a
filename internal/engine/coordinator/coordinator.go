// Package coordinator implements the Generation Coordinator (C8): a
// single-flight dispatcher that schedules generator calls for inventory
// deficits, bounds concurrency with a worker pool, retries with backoff,
// and admits validated/deduplicated results. Worker pool shape adapted
// from a static buffered-channel/waitgroup/shutdown-once pattern.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/engine/fingerprint"
	"noble-ngs-quiz/internal/engine/normalize"
	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/engine/validate"
	"noble-ngs-quiz/internal/metrics"
	"noble-ngs-quiz/internal/models"
)

// JobState is one of the Generation Coordinator's state machine states.
type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobKey identifies a single-flighted generation job.
type JobKey struct {
	Subject    string
	Topic      string
	Subtopic   string
	Difficulty models.Difficulty
	Grade      int
}

// GenerationContext is passed to the external Generator for a single job
// run.
type GenerationContext struct {
	Subject        string
	Topic          string
	Subtopic       string
	Grade          int
	Difficulty     models.Difficulty
	RequestedCount int
}

// Generator is the external question-generation collaborator (§6).
type Generator interface {
	Generate(ctx context.Context, gctx GenerationContext) ([]models.Candidate, error)
}

// Job is the in-memory record of one generation key's outstanding work.
// GenerationJob is explicitly not durable: loss at shutdown is acceptable
// because deficits are re-observed on the next fetch.
type Job struct {
	Key               JobKey
	RequestedCount    int
	State             JobState
	Attempts          int
	NextEarliestRunAt time.Time
	CreatedAt         time.Time
	done              chan struct{}
}

// Config bounds the coordinator's execution model.
type Config struct {
	Workers      int
	MaxAttempts  int
	BackoffBase  time.Duration
	JitterFrac   float64
	Deadline     time.Duration
	QueueCap     int
}

// Coordinator is C8. It owns the GenerationJob table exclusively.
type Coordinator struct {
	cfg       Config
	store     store.Store
	generator Generator

	mu   sync.Mutex
	jobs map[JobKey]*Job

	taskChan     chan JobKey
	shutdownChan chan struct{}
	workerWg     sync.WaitGroup
	tickerWg     sync.WaitGroup
	once         sync.Once
}

// New builds a Coordinator with a bounded worker pool; call Start to begin
// draining jobs.
func New(cfg Config, st store.Store, gen Generator) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueCap <= 0 {
		cfg.QueueCap = cfg.Workers * 4
	}
	return &Coordinator{
		cfg:          cfg,
		store:        st,
		generator:    gen,
		jobs:         make(map[JobKey]*Job),
		taskChan:     make(chan JobKey, cfg.QueueCap),
		shutdownChan: make(chan struct{}),
	}
}

// Start launches the worker pool and the retry-scan goroutine.
func (c *Coordinator) Start() {
	for i := 0; i < c.cfg.Workers; i++ {
		c.workerWg.Add(1)
		go c.worker()
	}
	c.tickerWg.Add(1)
	go c.retryScanner()
}

// Shutdown cancels in-flight work and waits for workers to exit. Idempotent.
func (c *Coordinator) Shutdown() {
	c.once.Do(func() {
		close(c.shutdownChan)
	})
	c.workerWg.Wait()
	c.tickerWg.Wait()
}

// Submit enqueues (or coalesces into an existing non-terminal job) a
// generation request for key. Non-blocking beyond a small bounded wait
// when the queue is full and this is a brand new job; if that wait runs
// out, the new job is marked failed so a later submit can open a fresh one.
func (c *Coordinator) Submit(key JobKey, requestedCount int) {
	c.mu.Lock()
	job, exists := c.jobs[key]
	if exists && !terminal(job.State) {
		if requestedCount > job.RequestedCount {
			job.RequestedCount = requestedCount
		}
		c.mu.Unlock()
		return
	}

	job = &Job{Key: key, RequestedCount: requestedCount, State: JobPending, CreatedAt: time.Now(), done: make(chan struct{})}
	c.jobs[key] = job
	c.mu.Unlock()

	select {
	case c.taskChan <- key:
	case <-c.shutdownChan:
	default:
		select {
		case c.taskChan <- key:
		case <-time.After(50 * time.Millisecond):
			log.Printf("generation queue full, dropping submit for %+v", key)
			c.mu.Lock()
			job.State = JobFailed
			close(job.done)
			c.mu.Unlock()
		case <-c.shutdownChan:
		}
	}
}

// Wait blocks until key's current job reaches a terminal state or timeout
// elapses, returning true if it observed completion. Used by the Batch
// Picker's optional synchronous-wait behavior.
func (c *Coordinator) Wait(ctx context.Context, key JobKey, timeout time.Duration) bool {
	c.mu.Lock()
	job, exists := c.jobs[key]
	c.mu.Unlock()
	if !exists {
		return false
	}

	select {
	case <-job.done:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) worker() {
	defer c.workerWg.Done()
	for {
		select {
		case <-c.shutdownChan:
			return
		case key := <-c.taskChan:
			c.runJob(key)
		}
	}
}

func (c *Coordinator) runJob(key JobKey) {
	c.mu.Lock()
	job, exists := c.jobs[key]
	if !exists || job.State != JobPending {
		c.mu.Unlock()
		return
	}
	job.State = JobRunning
	requested := job.RequestedCount
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Deadline)
	defer cancel()
	go func() {
		select {
		case <-c.shutdownChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	candidates, err := c.generator.Generate(ctx, GenerationContext{
		Subject:        key.Subject,
		Topic:          key.Topic,
		Subtopic:       key.Subtopic,
		Grade:          key.Grade,
		Difficulty:     key.Difficulty,
		RequestedCount: requested,
	})

	if err != nil {
		c.failOrRetry(job, err)
		return
	}

	admitted, invalid := c.admitBatch(ctx, candidates)
	if admitted == 0 && len(candidates) == 0 {
		c.failOrRetry(job, apperr.New(apperr.KindGeneratorTransient, "empty batch"))
		return
	}
	if admitted == 0 && invalid == len(candidates) {
		c.failOrRetry(job, apperr.New(apperr.KindGeneratorTransient, "fully invalid batch"))
		return
	}

	c.mu.Lock()
	job.State = JobDone
	close(job.done)
	c.mu.Unlock()

	metrics.GenerationJobsTotal.WithLabelValues("done").Inc()
	metrics.GenerationJobDuration.Observe(time.Since(job.CreatedAt).Seconds())
}

// admitBatch normalizes, validates, fingerprints, dedupes within the
// batch, and admits to the store. Returns counts of admitted and
// structurally invalid candidates.
func (c *Coordinator) admitBatch(ctx context.Context, candidates []models.Candidate) (admitted, invalid int) {
	seenFP := make(map[string]bool)
	var toAdmit []models.Question

	for _, cand := range candidates {
		cand.Subject = normalize.Metadata(cand.Subject)
		cand.Topic = normalize.Metadata(cand.Topic)
		cand.Subtopic = normalize.Metadata(cand.Subtopic)

		if err := validate.Candidate(cand); err != nil {
			invalid++
			continue
		}

		fp := fingerprint.Compute(cand.Stem, cand.Options, cand.CorrectAnswer)
		if seenFP[fp] {
			continue
		}
		seenFP[fp] = true

		toAdmit = append(toAdmit, models.Question{
			Subject:       cand.Subject,
			Topic:         cand.Topic,
			Subtopic:      cand.Subtopic,
			Grade:         cand.Grade,
			Difficulty:    cand.Difficulty,
			Stem:          cand.Stem,
			Options:       cand.Options,
			CorrectAnswer: cand.CorrectAnswer,
			Rationale:     cand.Rationale,
			StandardRef:   cand.StandardRef,
			Fingerprint:   fp,
		})
	}

	if len(toAdmit) == 0 {
		return 0, invalid
	}

	result, err := c.store.AdmitQuestions(ctx, toAdmit)
	if err != nil {
		log.Printf("generation coordinator: admit_questions failed: %v", err)
		return 0, invalid
	}
	return result.Accepted, invalid
}

func (c *Coordinator) failOrRetry(job *Job, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job.Attempts++

	if appErr, ok := cause.(*apperr.Error); ok && appErr.Kind == apperr.KindGeneratorPermanent {
		job.State = JobFailed
		close(job.done)
		log.Printf("generation job %+v failed permanently: %v", job.Key, cause)
		metrics.GenerationJobsTotal.WithLabelValues("failed").Inc()
		metrics.GenerationJobDuration.Observe(time.Since(job.CreatedAt).Seconds())
		return
	}

	if job.Attempts >= c.cfg.MaxAttempts {
		job.State = JobFailed
		close(job.done)
		log.Printf("generation job %+v failed after %d attempts: %v", job.Key, job.Attempts, cause)
		metrics.GenerationJobsTotal.WithLabelValues("failed").Inc()
		metrics.GenerationJobDuration.Observe(time.Since(job.CreatedAt).Seconds())
		return
	}

	job.State = JobPending
	job.NextEarliestRunAt = time.Now().Add(backoffWithJitter(c.cfg.BackoffBase, c.cfg.JitterFrac, job.Attempts, job.Key))
}

func (c *Coordinator) retryScanner() {
	defer c.tickerWg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.shutdownChan:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			var ready []JobKey
			for k, j := range c.jobs {
				if j.State == JobPending && j.Attempts > 0 && !j.NextEarliestRunAt.After(now) {
					ready = append(ready, k)
				}
			}
			c.mu.Unlock()

			for _, k := range ready {
				select {
				case c.taskChan <- k:
				default:
				}
			}
		}
	}
}

func terminal(s JobState) bool {
	return s == JobDone || s == JobFailed
}

// backoffWithJitter computes base * 2^(attempts-1) plus a deterministic
// jitter derived from the job key and attempt number, so repeated runs
// with the same inputs are reproducible in tests.
func backoffWithJitter(base time.Duration, jitterFrac float64, attempts int, key JobKey) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
	}

	if jitterFrac <= 0 {
		return delay
	}

	h := sha256.Sum256([]byte(key.Subject + "|" + key.Topic + "|" + key.Subtopic + "|" +
		string(key.Difficulty) + "|" + strconv.Itoa(attempts)))
	seed := int64(binary.BigEndian.Uint64(h[:8]))
	r := rand.New(rand.NewSource(seed))

	jitterRange := float64(delay) * jitterFrac
	offset := (r.Float64()*2 - 1) * jitterRange
	return delay + time.Duration(offset)
}
