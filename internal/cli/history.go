package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
)

type historyBackend interface {
	History(ctx context.Context, page, limit int) (domain.HistoryPage, error)
	Stats(ctx context.Context) (domain.Stats, error)
	AttemptDetails(ctx context.Context, resultID string) (domain.HistoryEntry, error)
}

// NewHistoryCmd prints past results, aggregate stats or one attempt.
func NewHistoryCmd(configPath, token *string) *cobra.Command {
	var (
		page  int
		limit int
		stats bool
	)
	cmd := &cobra.Command{
		Use:   "history [result-id]",
		Short: "Show past quiz results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, *token)
			if err != nil {
				return err
			}
			ctx := withCredentials(cmd.Context(), cfg)
			api := newBackendClient(cfg)
			out := cmd.OutOrStdout()
			switch {
			case len(args) == 1:
				return printAttempt(ctx, api, args[0], out)
			case stats:
				return printStats(ctx, api, out)
			}
			return printHistory(ctx, api, page, limit, out)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "history page")
	cmd.Flags().IntVar(&limit, "limit", 10, "results per page")
	cmd.Flags().BoolVar(&stats, "stats", false, "show aggregate statistics instead")
	return cmd
}

func printHistory(ctx context.Context, api historyBackend, page, limit int, out io.Writer) error {
	history, err := api.History(ctx, page, limit)
	if err != nil {
		return err
	}
	if len(history.Entries) == 0 {
		fmt.Fprintln(out, "No attempts yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUIZ\tSCORE\tPERCENT\tTIME\tATTEMPT\tDATE")
	for _, e := range history.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%.1f%%\t%s\t#%d\t%s\n",
			e.ID, e.QuizTitle, e.Result.Score, e.Result.Total, e.Result.Percentage,
			attempt.FormatClock(e.Result.TimeTakenSeconds), e.Result.AttemptOrdinal,
			e.CompletedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Page %d of %d\n", history.Page, history.TotalPages)
	return nil
}

func printStats(ctx context.Context, api historyBackend, out io.Writer) error {
	stats, err := api.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Attempts: %d\nQuizzes taken: %d\nAverage score: %.1f%%\nBest score: %.1f%%\n",
		stats.TotalAttempts, stats.TotalQuizzesTaken, stats.AverageScore, stats.BestScore)
	return nil
}

func printAttempt(ctx context.Context, api historyBackend, resultID string, out io.Writer) error {
	e, err := api.AttemptDetails(ctx, resultID)
	if err != nil {
		return err
	}
	verdict := "not passed"
	if e.Result.Passed() {
		verdict = "passed"
	}
	title := e.QuizTitle
	if title == "" {
		title = e.QuizID
	}
	fmt.Fprintf(out, "%s: %d/%d (%.1f%%), %s\nTime taken: %s, attempt #%d\n",
		title, e.Result.Score, e.Result.Total, e.Result.Percentage, verdict,
		attempt.FormatClock(e.Result.TimeTakenSeconds), e.Result.AttemptOrdinal)
	return nil
}
