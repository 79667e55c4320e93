package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-attempt-service/internal/domain"
)

type listerFunc func(ctx context.Context) ([]domain.Summary, error)

func (f listerFunc) ListQuizzes(ctx context.Context) ([]domain.Summary, error) { return f(ctx) }

func TestQuizHandlerLists(t *testing.T) {
	h := NewQuizHandler(listerFunc(func(context.Context) ([]domain.Summary, error) {
		return []domain.Summary{{ID: "quiz-1", Title: "Arithmetic", QuestionCount: 2}}, nil
	}), nil)

	rec := httptest.NewRecorder()
	h.ServeList(rec, httptest.NewRequest(http.MethodGet, "/quizzes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body quizListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Quizzes) != 1 || body.Quizzes[0].QuestionCount != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestQuizHandlerErrors(t *testing.T) {
	h := NewQuizHandler(listerFunc(func(context.Context) ([]domain.Summary, error) {
		return nil, &domain.NetworkError{Op: "list quizzes", StatusCode: http.StatusInternalServerError}
	}), nil)

	rec := httptest.NewRecorder()
	h.ServeList(rec, httptest.NewRequest(http.MethodGet, "/quizzes", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeList(rec, httptest.NewRequest(http.MethodPost, "/quizzes", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
