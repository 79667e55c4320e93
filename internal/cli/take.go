package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/events"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/platform/logger"
)

// takeBackend is what a terminal attempt needs from the backend.
type takeBackend interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Summary, error)
	Submit(ctx context.Context, submission domain.Submission) (domain.Result, error)
	Profile(ctx context.Context) (domain.SessionStatus, error)
	ResendVerification(ctx context.Context) error
}

type takeOptions struct {
	quizID             string
	secondsPerQuestion int
	clock              clockwork.Clock
	logger             *logger.Logger
	publisher          events.Publisher
}

// NewTakeCmd runs a timed attempt in the terminal.
func NewTakeCmd(configPath, token *string) *cobra.Command {
	return &cobra.Command{
		Use:   "take [quiz-id]",
		Short: "Take a timed quiz in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, *token)
			if err != nil {
				return err
			}
			opts := takeOptions{secondsPerQuestion: cfg.Quiz.SecondsPerQuestion, logger: logger.Nop()}
			if len(args) == 1 {
				opts.quizID = args[0]
			}
			if len(cfg.Events.KafkaBrokers) > 0 {
				if opts.publisher, err = newPublisher(cfg, opts.logger); err != nil {
					return err
				}
			}
			ctx := withCredentials(cmd.Context(), cfg)
			return runTake(ctx, newBackendClient(cfg), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runTake(ctx context.Context, api takeBackend, opts takeOptions, in io.Reader, out io.Writer) error {
	if opts.clock == nil {
		opts.clock = clockwork.NewRealClock()
	}
	if opts.logger == nil {
		opts.logger = logger.Nop()
	}
	if opts.secondsPerQuestion <= 0 {
		opts.secondsPerQuestion = config.DefaultSecondsPerQuestion
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)

	if opts.quizID == "" {
		quizID, err := chooseQuiz(ctx, api, lines, out)
		if err != nil {
			return err
		}
		opts.quizID = quizID
	}

	status, err := api.Profile(ctx)
	switch {
	case errors.Is(err, domain.ErrVerificationRequired):
		status = domain.SessionStatus{}
	case err != nil:
		return fmt.Errorf("resolve session: %w", err)
	}

	serviceOpts := []app.Option{
		app.WithClock(opts.clock),
		app.WithLogger(opts.logger),
		app.WithSecondsPerQuestion(opts.secondsPerQuestion),
	}
	if opts.publisher != nil {
		serviceOpts = append(serviceOpts, app.WithPublisher(opts.publisher))
	}
	service := app.NewAttemptService(memory.NewAttemptStore(), memory.NewQuizRepository(api, 0), api, serviceOpts...)
	defer service.Shutdown(context.Background())

	runner, err := service.Start(ctx, opts.quizID, status.UserID, attempt.StaticStatus(status))
	if err != nil {
		return err
	}
	snapshots, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	fmt.Fprintln(out, "Commands: A-F answer, a N answer option N, n next, p previous, g N jump, s submit, q quit")
	view := &terminalView{out: out}
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return finishTake(ctx, api, view, runner.Snapshot(), lines)
			}
			view.render(snap)
		case line, ok := <-lines:
			if !ok {
				// input closed; the countdown still submits
				lines = nil
				continue
			}
			quit, err := applyCommand(ctx, runner, line, view.last)
			if err != nil {
				fmt.Fprintf(out, "%v\n", err)
			}
			if quit {
				if err := service.Abandon(ctx, runner.ID()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Attempt abandoned.")
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func chooseQuiz(ctx context.Context, api takeBackend, lines <-chan string, out io.Writer) (string, error) {
	quizzes, err := api.ListQuizzes(ctx)
	if err != nil {
		return "", fmt.Errorf("list quizzes: %w", err)
	}
	if len(quizzes) == 0 {
		return "", errors.New("no quizzes available")
	}
	for i, q := range quizzes {
		fmt.Fprintf(out, "%d. %s (%d questions)\n", i+1, q.Title, q.QuestionCount)
	}
	for {
		fmt.Fprintf(out, "Choose a quiz [1-%d]: ", len(quizzes))
		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			line = l
		case <-ctx.Done():
			return "", ctx.Err()
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= len(quizzes) {
			return quizzes[n-1].ID, nil
		}
		fmt.Fprintln(out, "Invalid choice.")
	}
}

// applyCommand maps one input line onto the attempt. It reports whether the user quit.
func applyCommand(ctx context.Context, runner *attempt.Runner, line string, current attempt.Snapshot) (bool, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}
	switch cmd := fields[0]; {
	case cmd == "q":
		return true, nil
	case cmd == "n":
		return false, runner.Next(ctx)
	case cmd == "p":
		return false, runner.Previous(ctx)
	case cmd == "s":
		return false, runner.Submit(ctx)
	case cmd == "g":
		if len(fields) != 2 {
			return false, errors.New("usage: g <question number>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("invalid question number %q", fields[1])
		}
		return false, runner.JumpTo(ctx, n-1)
	case cmd == "a" && len(fields) == 2:
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("invalid option number %q", fields[1])
		}
		return false, answer(ctx, runner, current, n-1)
	case len(cmd) == 1 && cmd[0] >= 'a' && cmd[0] <= 'z':
		return false, answer(ctx, runner, current, int(cmd[0]-'a'))
	}
	return false, fmt.Errorf("unknown command %q", line)
}

// answer selects option for the question on screen. Letters past F collide with
// commands, so larger quizzes use the numeric form.
func answer(ctx context.Context, runner *attempt.Runner, current attempt.Snapshot, option int) error {
	if current.Question == nil {
		return domain.ErrNotInProgress
	}
	if option < 0 || option >= len(current.Question.Options) {
		return fmt.Errorf("choose an option between 1 and %d", len(current.Question.Options))
	}
	return runner.Answer(ctx, current.Question.Index, option)
}

// finishTake prints the outcome and offers a verification resend when blocked.
func finishTake(ctx context.Context, api takeBackend, view *terminalView, final attempt.Snapshot, lines <-chan string) error {
	view.render(final)
	if final.Phase != attempt.PhaseVerificationRequired || lines == nil {
		return nil
	}
	fmt.Fprint(view.out, "Type r to resend the verification email, anything else to exit: ")
	select {
	case line, ok := <-lines:
		if !ok || strings.TrimSpace(strings.ToLower(line)) != "r" {
			fmt.Fprintln(view.out)
			return nil
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := api.ResendVerification(ctx); err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}
	fmt.Fprintln(view.out, "Verification email sent. Verify your email, then try again.")
	return nil
}

// readLines stops handing out input once ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// terminalView prints only what changed between snapshots.
type terminalView struct {
	out      io.Writer
	last     attempt.Snapshot
	rendered bool
}

func (v *terminalView) render(snap attempt.Snapshot) {
	prev := v.last
	v.last = snap
	first := !v.rendered
	v.rendered = true

	switch snap.Phase {
	case attempt.PhaseInProgress:
		if first || prev.Phase != snap.Phase || prev.CurrentIndex != snap.CurrentIndex || !sameSelection(prev.Selected, snap.Selected) {
			v.printQuestion(snap)
			return
		}
		if prev.RemainingSeconds != snap.RemainingSeconds && (snap.RemainingSeconds%30 == 0 || snap.RemainingSeconds <= 10) {
			fmt.Fprintf(v.out, "[%s left]\n", snap.Clock)
		}
	case attempt.PhaseSubmitting:
		if prev.Phase != snap.Phase {
			if snap.SubmittedBy == attempt.TriggerTimer {
				fmt.Fprintln(v.out, "Time is up!")
			}
			fmt.Fprintln(v.out, "Submitting...")
		}
	case attempt.PhaseCompleted:
		if prev.Phase == snap.Phase && !first || snap.Result == nil {
			return
		}
		r := snap.Result
		verdict := "not passed"
		if snap.Passed {
			verdict = "passed"
		}
		fmt.Fprintf(v.out, "Score: %d/%d (%.1f%%), %s\n", r.Score, r.Total, r.Percentage, verdict)
		fmt.Fprintf(v.out, "Time taken: %s, attempt #%d\n", attempt.FormatClock(r.TimeTakenSeconds), r.AttemptOrdinal)
	case attempt.PhaseVerificationRequired, attempt.PhaseError:
		if prev.Phase == snap.Phase && !first || snap.Error == nil {
			return
		}
		fmt.Fprintf(v.out, "%s\n", snap.Error.Message)
	}
}

func (v *terminalView) printQuestion(snap attempt.Snapshot) {
	q := snap.Question
	if q == nil {
		return
	}
	fmt.Fprintln(v.out)
	fmt.Fprintf(v.out, "Q%d/%d: %s   [%s left, %d answered]\n\n", q.Index+1, snap.QuestionCount, q.Text, snap.Clock, snap.AnsweredCount)
	for i, option := range q.Options {
		marker := " "
		if snap.Selected != nil && *snap.Selected == i {
			marker = "*"
		}
		fmt.Fprintf(v.out, "%s %c. %s\n", marker, 'A'+i, option)
	}
	fmt.Fprintln(v.out)
}

func sameSelection(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
