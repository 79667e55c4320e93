package http

import (
	"context"
	"encoding/json"
	"net/http"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/backend"
	"quiz-attempt-service/internal/platform/logger"
)

// QuizLister lists the quizzes an attempt can be started for.
type QuizLister interface {
	ListQuizzes(ctx context.Context) ([]domain.Summary, error)
}

type QuizHandler struct {
	quizzes QuizLister
	logger  *logger.Logger
}

func NewQuizHandler(quizzes QuizLister, log *logger.Logger) *QuizHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &QuizHandler{quizzes: quizzes, logger: log}
}

type quizListResponse struct {
	Quizzes []domain.Summary `json:"quizzes"`
}

// ServeList answers GET /quizzes.
func (h *QuizHandler) ServeList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	summaries, err := h.quizzes.ListQuizzes(backend.WithToken(r.Context(), credentials(r)))
	if err != nil {
		h.logger.Warn("list quizzes failed", "error", err)
		http.Error(w, "unable to list quizzes", statusFor(err))
		return
	}
	if summaries == nil {
		summaries = []domain.Summary{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(quizListResponse{Quizzes: summaries})
}
