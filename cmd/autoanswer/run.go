package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/config"
	"github.com/polzovatel/autoanswer/internal/llm"
	"github.com/polzovatel/autoanswer/internal/media"
	"github.com/polzovatel/autoanswer/internal/quiz"
	"github.com/polzovatel/autoanswer/internal/retry"
	"github.com/polzovatel/autoanswer/internal/runner"
	"github.com/polzovatel/autoanswer/internal/store"
)

type runFlags struct {
	headless   bool
	book       string
	pageOffset int
	tabOffset  int
	taskOffset int
	resume     bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in, open the book and answer every task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.apply(cmd, a.cfg)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.run(cmd.Context())
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.headless, "headless", false, "run chromium without a window")
	fl.StringVar(&f.book, "book", "", "course book id")
	fl.IntVar(&f.pageOffset, "page-offset", 0, "first page to visit")
	fl.IntVar(&f.tabOffset, "tab-offset", 0, "first tab on the first page")
	fl.IntVar(&f.taskOffset, "task-offset", 0, "first task on the first tab")
	fl.BoolVar(&f.resume, "resume", false, "skip tasks a previous run finished")
	return cmd
}

// apply copies only the flags the user set, so config values survive.
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if fl.Changed("book") {
		cfg.Platform.Book = f.book
	}
	if fl.Changed("page-offset") {
		cfg.Platform.PageOffset = f.pageOffset
	}
	if fl.Changed("tab-offset") {
		cfg.Platform.TabOffset = f.tabOffset
	}
	if fl.Changed("task-offset") {
		cfg.Platform.TaskOffset = f.taskOffset
	}
	if fl.Changed("resume") {
		cfg.Platform.Resume = f.resume
	}
}

func (a *app) run(ctx context.Context) error {
	cfg := a.cfg

	launcher, err := browser.NewLauncher(ctx, browser.Options{
		Headless:      cfg.Browser.Headless,
		SlowMo:        cfg.Browser.SlowMo,
		NavTimeout:    cfg.Browser.NavTimeout,
		ActionTimeout: cfg.Browser.ActionTimeout,
		Width:         cfg.Browser.Width,
		Height:        cfg.Browser.Height,
	}, a.component("browser"))
	if err != nil {
		return fmt.Errorf("browser init: %w", err)
	}
	defer launcher.Close()

	page, err := launcher.NewPage(ctx, cfg.Browser.StorageState)
	if err != nil {
		return fmt.Errorf("browser page: %w", err)
	}
	defer page.Close(context.Background())
	a.log.Info().Bool("restored", page.Restored()).Msg("browser session ready")

	client, err := llm.NewClient(ctx, cfg.LLM, a.component("llm"))
	if err != nil {
		return fmt.Errorf("llm init: %w", err)
	}
	svc := llm.NewService(client, llm.ServiceOptions{
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
	}, a.component("llm"))

	transcripts, err := media.Open(ctx, cfg.Transcription, cfg.Media, a.component("media"))
	if err != nil {
		return fmt.Errorf("media init: %w", err)
	}
	defer transcripts.Close()

	ledger, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	quizLog := a.component("quiz")
	timing := quiz.Timing{
		Submit:     cfg.Timing.SubmitWait,
		PeerWait:   cfg.Timing.PeerWait,
		Dropdown:   cfg.Timing.Dropdown,
		DragStep:   cfg.Timing.DragStep,
		VideoWatch: cfg.Timing.VideoWatch,
	}
	registry := quiz.DefaultRegistry(quiz.Deps{Media: transcripts, Timing: timing, Log: quizLog})
	grader := &quiz.Grader{
		ScoreTimeout:  cfg.Retry.ScoreTimeout,
		ActionTimeout: cfg.Browser.ActionTimeout,
		DialogWait:    cfg.Timing.DialogWait,
		Log:           quizLog,
	}
	ctrl := retry.NewController(retry.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		PassScore:  cfg.Retry.PassScore,
	}, svc, grader, a.component("retry"))

	rep, runErr := runner.New(page, registry, ctrl, ledger, runner.OptionsFrom(cfg), a.component("runner")).Run(ctx)

	if path := cfg.Browser.StorageState; path != "" {
		if err := page.SaveState(context.Background(), path); err != nil {
			a.log.Error().Err(err).Msg("save state")
		} else {
			a.log.Info().Str("path", path).Msg("storage saved")
		}
	}

	a.log.Info().
		Str("run", rep.RunID).
		Int("succeeded", rep.Succeeded).
		Int("skipped", rep.Skipped).
		Int("resumed", rep.Resumed).
		Int("unsupported", rep.Unsupported).
		Int("failed", len(rep.Failed)).
		Msg("run finished")
	if err := printFailed(context.Background(), os.Stdout, ledger); err != nil {
		a.log.Error().Err(err).Msg("list failed tasks")
	}
	return runErr
}

type failedLister interface {
	Failed(ctx context.Context) ([]store.TaskRecord, error)
}

// printFailed lists the tasks of this run that need a manual look, one per
// line with the layout and what went wrong.
func printFailed(ctx context.Context, w io.Writer, l failedLister) error {
	recs, err := l.Failed(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		layout := rec.Layout
		if layout == "" {
			layout = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.TaskKey, rec.State, layout, rec.Detail)
	}
	return nil
}
