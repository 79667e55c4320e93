package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

// QuizLoader loads quiz JSONB documents from a self-hosted Postgres catalogue.
type QuizLoader struct {
	pool      *pgxpool.Pool
	listLimit int
}

const defaultListLimit = 50

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool, listLimit: defaultListLimit}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, &domain.NetworkError{Op: "load quiz", Err: err}
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", errors.Join(domain.ErrInvalidQuiz, err))
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

// ListQuizzes returns catalogue summaries ordered by title.
func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]domain.Summary, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, COALESCE(data->>'title', ''), COALESCE(jsonb_array_length(data->'questions'), 0)
		FROM quizzes
		ORDER BY 2, 1
		LIMIT $1`, l.listLimit)
	if err != nil {
		return nil, &domain.NetworkError{Op: "list quizzes", Err: err}
	}
	defer rows.Close()

	var out []domain.Summary
	for rows.Next() {
		var s domain.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan quiz summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
