package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-attempt-service/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLoadQuiz_DecodesQuestionsAndSendsToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quize/quiz/q1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"quize": map[string]any{
				"_id":   "q1",
				"title": "Go basics",
				"questions": []map[string]any{
					{"question": "2+2?", "options": []string{"3", "4"}},
					{"question": "Capital of France?", "options": []string{"Paris", "Rome", "Oslo"}},
				},
			},
		})
	})

	quiz, err := client.LoadQuiz(WithToken(context.Background(), "secret"), "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", quiz.ID)
	assert.Equal(t, "Go basics", quiz.Title)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, []string{"Paris", "Rome", "Oslo"}, quiz.Questions[1].Options)
	assert.Nil(t, quiz.Questions[0].CorrectOptionIndex)
}

func TestLoadQuiz_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Quiz not found"})
	})

	_, err := client.LoadQuiz(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
	assert.Equal(t, domain.KindNotFound, domain.Classify(err))
}

func TestLoadQuiz_VerificationRequired(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"success":              false,
			"message":              "Please verify your email",
			"requiresVerification": true,
		})
	})

	_, err := client.LoadQuiz(context.Background(), "q1")
	assert.ErrorIs(t, err, domain.ErrVerificationRequired)
}

func TestLoadQuiz_ServerErrorIsNetwork(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "db down"})
	})

	_, err := client.LoadQuiz(context.Background(), "q1")
	var nerr *domain.NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, http.StatusInternalServerError, nerr.StatusCode)
	assert.Equal(t, "db down", nerr.Message)
	assert.Equal(t, domain.KindNetwork, domain.Classify(err))
}

func TestLoadQuiz_UnreachableIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL, nil)

	_, err := client.LoadQuiz(context.Background(), "q1")
	require.Error(t, err)
	assert.Equal(t, domain.KindNetwork, domain.Classify(err))
}

func TestSubmit_EncodesUnsetAsNull(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/result/submit-quiz/q1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{float64(1), nil, float64(0)}, body["answers"])
		assert.Equal(t, float64(75), body["timeTaken"])

		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"result": map[string]any{
				"score": 2, "total": 3, "percentage": 66.67, "timeTaken": 75, "attempt": 2,
			},
		})
	})

	res, err := client.Submit(context.Background(), domain.Submission{
		QuizID:           "q1",
		Answers:          []int{1, domain.Unset, 0},
		TimeTakenSeconds: 75,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Result{Score: 2, Total: 3, Percentage: 66.67, TimeTakenSeconds: 75, AttemptOrdinal: 2}, res)
	assert.False(t, res.Passed())
}

func TestSubmit_UnsuccessfulEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Invalid answers format"})
	})

	_, err := client.Submit(context.Background(), domain.Submission{QuizID: "q1", Answers: []int{0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid answers format")
}

func TestProfileAndResend(t *testing.T) {
	var resent bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/profile":
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"user":    map[string]any{"_id": "u1", "isVerified": false},
			})
		case "/auth/resend-verification":
			assert.Equal(t, http.MethodPost, r.Method)
			resent = true
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "sent"})
		default:
			http.NotFound(w, r)
		}
	})

	status, err := client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatus{UserID: "u1", IsVerified: false}, status)

	require.NoError(t, client.ResendVerification(context.Background()))
	assert.True(t, resent)
}

func TestHistoryStatsAndDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/result/history":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"results": []map[string]any{{
					"_id": "r1", "score": 3, "total": 4, "percentage": 75, "timeTaken": 40, "attempt": 1,
					"quiz":      map[string]any{"_id": "q1", "title": "Go basics"},
					"createdAt": "2024-05-01T10:00:00.000Z",
				}},
				"currentPage": 2,
				"totalPages":  3,
			})
		case "/result/stats":
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"stats":   map[string]any{"totalAttempts": 4, "averageScore": 62.5, "bestScore": 90, "totalQuizzesTaken": 2},
			})
		case "/result/attempt/r1":
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"result":  map[string]any{"_id": "r1", "score": 3, "total": 4, "percentage": 75},
			})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	page, err := client.History(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "Go basics", page.Entries[0].QuizTitle)
	assert.True(t, page.Entries[0].Result.Passed())
	assert.Equal(t, 2024, page.Entries[0].CompletedAt.Year())

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalAttempts)
	assert.InDelta(t, 62.5, stats.AverageScore, 0.001)

	entry, err := client.AttemptDetails(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Result.Score)
}

func TestListQuizzes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"quizes": []map[string]any{
				{"_id": "a", "title": "A", "questions": []map[string]any{{"question": "x", "options": []string{"1", "2"}}}},
				{"_id": "b", "title": "B"},
			},
		})
	})

	got, err := client.ListQuizzes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Summary{{ID: "a", Title: "A", QuestionCount: 1}, {ID: "b", Title: "B"}}, got)
}
