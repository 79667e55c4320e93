package migrations

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_quizzes.sql
var createQuizzesSQL string

// Migrations holds the quiz catalogue schema.
var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(createQuizzes, dropQuizzes)
}

func createQuizzes(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, createQuizzesSQL)
		return err
	})
}

func dropQuizzes(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quizzes`)
	return err
}
