package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quiz-attempt-service/internal/domain"
)

const (
	defaultBaseURL = "http://127.0.0.1:3000/api"
	maxBodyBytes   = 1 << 20
)

type tokenKey struct{}

// WithToken attaches the caller's credentials to ctx; every request made with it
// carries them as a bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client talks to the quiz backend: quiz content, result scoring, session and history.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type envelope struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification"`
}

func (e envelope) status() envelope { return e }

type enveloped interface {
	status() envelope
}

type wireQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty"`
}

type wireQuiz struct {
	ID        string         `json:"_id"`
	Title     string         `json:"title"`
	Questions []wireQuestion `json:"questions"`
}

type quizResponse struct {
	envelope
	Quize wireQuiz `json:"quize"`
}

type quizzesResponse struct {
	envelope
	Quizes []wireQuiz `json:"quizes"`
}

type submitRequest struct {
	Answers   []*int `json:"answers"`
	TimeTaken int    `json:"timeTaken"`
}

type wireResult struct {
	ID         string  `json:"_id"`
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	TimeTaken  int     `json:"timeTaken"`
	Attempt    int     `json:"attempt"`
	Quiz       struct {
		ID    string `json:"_id"`
		Title string `json:"title"`
	} `json:"quiz"`
	CreatedAt time.Time `json:"createdAt"`
}

type submitResponse struct {
	envelope
	Result wireResult `json:"result"`
}

type profileResponse struct {
	envelope
	User struct {
		ID         string `json:"_id"`
		IsVerified bool   `json:"isVerified"`
	} `json:"user"`
}

type historyResponse struct {
	envelope
	Results     []wireResult `json:"results"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
}

type attemptResponse struct {
	envelope
	Result wireResult `json:"result"`
}

type statsResponse struct {
	envelope
	Stats domain.Stats `json:"stats"`
}

// LoadQuiz fetches a quiz for an attempt. The backend answers requiresVerification
// when the caller's email is unverified.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var payload quizResponse
	err := c.doJSON(ctx, "fetch quiz", http.MethodGet, "/quize/quiz/"+url.PathEscape(quizID), nil, &payload)
	if err != nil {
		var nerr *domain.NetworkError
		if errors.As(err, &nerr) && nerr.StatusCode == http.StatusNotFound {
			return domain.Quiz{}, fmt.Errorf("fetch quiz %s: %w", quizID, domain.ErrQuizNotFound)
		}
		return domain.Quiz{}, err
	}
	quiz := toQuiz(payload.Quize)
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Summary, error) {
	var payload quizzesResponse
	if err := c.doJSON(ctx, "list quizzes", http.MethodGet, "/quize/all-quizes", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Summary, 0, len(payload.Quizes))
	for _, q := range payload.Quizes {
		out = append(out, domain.Summary{ID: q.ID, Title: q.Title, QuestionCount: len(q.Questions)})
	}
	return out, nil
}

// Submit hands a submission to the result service. Unset answers travel as null.
func (c *Client) Submit(ctx context.Context, submission domain.Submission) (domain.Result, error) {
	body := submitRequest{
		Answers:   make([]*int, len(submission.Answers)),
		TimeTaken: submission.TimeTakenSeconds,
	}
	for i, answer := range submission.Answers {
		if answer == domain.Unset {
			continue
		}
		answer := answer
		body.Answers[i] = &answer
	}

	var payload submitResponse
	path := "/result/submit-quiz/" + url.PathEscape(submission.QuizID)
	if err := c.doJSON(ctx, "submit quiz", http.MethodPost, path, body, &payload); err != nil {
		return domain.Result{}, err
	}
	return toResult(payload.Result), nil
}

// Profile reads the caller's session state.
func (c *Client) Profile(ctx context.Context) (domain.SessionStatus, error) {
	var payload profileResponse
	if err := c.doJSON(ctx, "fetch profile", http.MethodGet, "/auth/profile", nil, &payload); err != nil {
		return domain.SessionStatus{}, err
	}
	return domain.SessionStatus{UserID: payload.User.ID, IsVerified: payload.User.IsVerified}, nil
}

// ResendVerification asks the auth service to send a new verification email.
func (c *Client) ResendVerification(ctx context.Context) error {
	var payload envelope
	return c.doJSON(ctx, "resend verification", http.MethodPost, "/auth/resend-verification", nil, &payload)
}

func (c *Client) History(ctx context.Context, page, limit int) (domain.HistoryPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var payload historyResponse
	if err := c.doJSON(ctx, "fetch history", http.MethodGet, "/result/history?"+query.Encode(), nil, &payload); err != nil {
		return domain.HistoryPage{}, err
	}
	out := domain.HistoryPage{Page: payload.CurrentPage, TotalPages: payload.TotalPages}
	if out.Page == 0 {
		out.Page = page
	}
	for _, r := range payload.Results {
		out.Entries = append(out.Entries, toHistoryEntry(r))
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	var payload statsResponse
	if err := c.doJSON(ctx, "fetch stats", http.MethodGet, "/result/stats", nil, &payload); err != nil {
		return domain.Stats{}, err
	}
	return payload.Stats, nil
}

func (c *Client) AttemptDetails(ctx context.Context, resultID string) (domain.HistoryEntry, error) {
	var payload attemptResponse
	if err := c.doJSON(ctx, "fetch attempt", http.MethodGet, "/result/attempt/"+url.PathEscape(resultID), nil, &payload); err != nil {
		return domain.HistoryEntry{}, err
	}
	return toHistoryEntry(payload.Result), nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body any, out enveloped) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var failure envelope
		_ = json.Unmarshal(raw, &failure)
		if failure.RequiresVerification {
			return fmt.Errorf("%s: %w", op, domain.ErrVerificationRequired)
		}
		return &domain.NetworkError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(failure.Message)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env := out.status(); !env.Success {
		if env.RequiresVerification {
			return fmt.Errorf("%s: %w", op, domain.ErrVerificationRequired)
		}
		msg := env.Message
		if msg == "" {
			msg = "request was not successful"
		}
		return &domain.NetworkError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}

func toQuiz(w wireQuiz) domain.Quiz {
	quiz := domain.Quiz{ID: w.ID, Title: w.Title, Questions: make([]domain.Question, 0, len(w.Questions))}
	for _, q := range w.Questions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			Text:               q.Question,
			Options:            q.Options,
			CorrectOptionIndex: q.CorrectAnswer,
		})
	}
	return quiz
}

func toResult(w wireResult) domain.Result {
	return domain.Result{
		Score:            w.Score,
		Total:            w.Total,
		Percentage:       w.Percentage,
		TimeTakenSeconds: w.TimeTaken,
		AttemptOrdinal:   w.Attempt,
	}
}

func toHistoryEntry(w wireResult) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:          w.ID,
		QuizID:      w.Quiz.ID,
		QuizTitle:   w.Quiz.Title,
		Result:      toResult(w),
		CompletedAt: w.CreatedAt,
	}
}
