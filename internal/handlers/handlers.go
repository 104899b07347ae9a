package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/engine/ledger"
	"noble-ngs-quiz/internal/engine/normalize"
	"noble-ngs-quiz/internal/engine/picker"
	"noble-ngs-quiz/internal/engine/session"
	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/models"
)

// Handler wires the HTTP surface to the engine's dispatch, ledger and
// session components.
type Handler struct {
	store   store.Store
	picker  *picker.Picker
	ledger  *ledger.Ledger
	session *session.Tracker
}

func NewHandler(st store.Store, p *picker.Picker, l *ledger.Ledger, s *session.Tracker) *Handler {
	return &Handler{store: st, picker: p, ledger: l, session: s}
}

// getUserID extracts the learner's identity from the X-User-Id header, set
// by the auth layer upstream of this service.
func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDStr := c.Get("X-User-Id")
	if userIDStr == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "X-User-Id header required")
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid user ID format")
	}

	return userID, nil
}

// getGrade reads the required X-Learner-Grade header. Grade 0 is a valid
// curricular grade (kindergarten), so a missing or unparsable header must
// fail rather than silently default to 0 and be indistinguishable from it
// downstream.
func getGrade(c *fiber.Ctx) (int, error) {
	raw := c.Get("X-Learner-Grade")
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "X-Learner-Grade header required")
	}
	grade, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid X-Learner-Grade header")
	}
	return grade, nil
}

// FetchQuestions assembles an unseen, difficulty-ranked batch.
// GET /api/questions/fetch
func (h *Handler) FetchQuestions(c *fiber.Ctx) error {
	learnerID, err := getUserID(c)
	if err != nil {
		return err
	}

	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	grade, err := getGrade(c)
	if err != nil {
		return err
	}

	subject := normalize.Metadata(c.Query("subject"))
	topic := normalize.Metadata(c.Query("topic"))
	result, err := h.picker.Fetch(c.Context(), learnerID, grade,
		subject, topic, c.Query("subtopic"), limit)
	if err != nil {
		return translateErr(c, err)
	}

	sess, err := h.session.EnsureSession(c.Context(), learnerID, models.SessionContext{
		Subject: subject, Topic: topic, Subtopic: result.ResolvedSubtopic,
	})
	if err != nil {
		return translateErr(c, err)
	}

	return c.JSON(models.FetchBatchResponse{
		Questions:        result.Batch,
		ResolvedSubtopic: normalize.Display(result.ResolvedSubtopic),
		SessionID:        sess.ID,
		Deficit:          result.Deficit,
	})
}

// SubmitAttempt grades an answer and records it.
// POST /api/attempts
func (h *Handler) SubmitAttempt(c *fiber.Ctx) error {
	learnerID, err := getUserID(c)
	if err != nil {
		return err
	}

	var req models.SubmitAttemptRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.ledger.SubmitAttempt(c.Context(), learnerID, req.QuestionID, req.Selected, req.ElapsedMS)
	if err != nil {
		return translateErr(c, err)
	}

	return c.JSON(resp)
}

// GetProgress returns the learner's accuracy, streak and per-subject
// breakdown.
// GET /api/progress
func (h *Handler) GetProgress(c *fiber.Ctx) error {
	learnerID, err := getUserID(c)
	if err != nil {
		return err
	}

	progress, err := h.ledger.Progress(c.Context(), learnerID)
	if err != nil {
		return translateErr(c, err)
	}

	bySubject := make(map[string]models.SubjectProgress, len(progress.BySubject))
	for subject, sp := range progress.BySubject {
		bySubject[normalize.Display(subject)] = sp
	}
	progress.BySubject = bySubject

	return c.JSON(progress)
}

// OpenSession opens (or returns the already-open) session for the caller.
// POST /api/sessions
func (h *Handler) OpenSession(c *fiber.Ctx) error {
	learnerID, err := getUserID(c)
	if err != nil {
		return err
	}

	var sctx models.SessionContext
	_ = c.BodyParser(&sctx)
	sctx.Subject = normalize.Metadata(sctx.Subject)
	sctx.Topic = normalize.Metadata(sctx.Topic)
	sctx.Subtopic = normalize.Metadata(sctx.Subtopic)

	sess, err := h.session.EnsureSession(c.Context(), learnerID, sctx)
	if err != nil {
		return translateErr(c, err)
	}

	return c.JSON(sess)
}

// EndSession closes a session idempotently.
// POST /api/sessions/:id/end
func (h *Handler) EndSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	sess, err := h.session.EndSession(c.Context(), sessionID)
	if err != nil {
		return translateErr(c, err)
	}

	return c.JSON(sess)
}

// SessionSummary returns aggregate statistics for a session.
// GET /api/sessions/:id/summary
func (h *Handler) SessionSummary(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	summary, err := h.session.Summary(c.Context(), sessionID)
	if err != nil {
		return translateErr(c, err)
	}

	return c.JSON(summary)
}

// ListSubtopics lists the subtopic catalog for a subject/grade.
// GET /api/subtopics
func (h *Handler) ListSubtopics(c *fiber.Ctx) error {
	grade, err := getGrade(c)
	if err != nil {
		return err
	}

	subtopics, err := h.store.ListSubtopics(c.Context(), normalize.Metadata(c.Query("subject")), grade, normalize.Metadata(c.Query("topic")))
	if err != nil {
		return translateErr(c, err)
	}

	for i := range subtopics {
		subtopics[i].Subject = normalize.Display(subtopics[i].Subject)
		subtopics[i].Topic = normalize.Display(subtopics[i].Topic)
		subtopics[i].Name = normalize.Display(subtopics[i].Name)
	}

	return c.JSON(fiber.Map{
		"subtopics": subtopics,
		"count":     len(subtopics),
	})
}

// Health check.
// GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "ngs-quiz",
	})
}

// translateErr maps the engine's error taxonomy onto HTTP status codes.
func translateErr(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Printf("unclassified engine error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	status := fiber.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindNotFound, apperr.KindUnknownQuestion:
		status = fiber.StatusNotFound
	case apperr.KindValidationFailure:
		status = fiber.StatusBadRequest
	case apperr.KindStoreUnavailable:
		status = fiber.StatusServiceUnavailable
	}

	if status == fiber.StatusInternalServerError {
		log.Printf("engine error: %v", appErr)
	}

	return c.Status(status).JSON(fiber.Map{"error": appErr.Message, "kind": string(appErr.Kind)})
}
