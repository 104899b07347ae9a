package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/engine/coordinator"
	"noble-ngs-quiz/internal/models"
)

func TestClient_Generate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "secret-token", r.Header.Get("X-Service-Token"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "math", req.Subject)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse{Questions: []models.Candidate{
			{Subject: "math", Topic: "algebra", Subtopic: "linear", Grade: 5, Difficulty: models.DifficultyEasy,
				Stem: "stem", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a"},
		}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, func() string { return "secret-token" }, time.Second)
	candidates, err := client.Generate(context.Background(), coordinator.GenerationContext{
		Subject: "math", Topic: "algebra", Subtopic: "linear", Grade: 5,
		Difficulty: models.DifficultyEasy, RequestedCount: 1,
	})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "stem", candidates[0].Stem)
}

func TestClient_Generate_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, func() string { return "tok" }, time.Second)
	_, err := client.Generate(context.Background(), coordinator.GenerationContext{Subject: "math", RequestedCount: 1})

	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindGeneratorPermanent, appErr.Kind)
}

func TestClient_Generate_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("try later"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, func() string { return "tok" }, time.Second)
	_, err := client.Generate(context.Background(), coordinator.GenerationContext{Subject: "math", RequestedCount: 1})

	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindGeneratorTransient, appErr.Kind)
}
