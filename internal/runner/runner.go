// Package runner walks a course book page by page, tab by tab and task by
// task, answering every exercise it recognises.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/config"
	"github.com/polzovatel/autoanswer/internal/quiz"
	"github.com/polzovatel/autoanswer/internal/retry"
	"github.com/polzovatel/autoanswer/internal/snapshot"
	"github.com/polzovatel/autoanswer/internal/store"
)

const (
	selUsername    = "#username"
	selPassword    = "#password"
	selAgreement   = "#agreement"
	selLoginButton = "button.usso-login-btn"

	selCourseStart = "button.ant-btn.ant-btn-default.courses-info_buttonLayer1__Mtel4 span"
	selKnowTip     = "div.know-box span.iKnow"

	selPages    = "div.pc-slider-menu-micro"
	selPageName = "span.pc-menu-node-name"
	selTabs     = "div.ant-row.pc-tab-row div.tab"
	selTabName  = "div"
	selTasks    = "div.pc-header-tasks-row>div"
	selLayout   = "div.layout-container"
)

// Page is the browser surface plus navigation.
type Page interface {
	browser.Surface
	Navigate(ctx context.Context, url string) error
	FillSelector(ctx context.Context, selector, text string) error
	URL() string
}

type Resolver interface {
	Resolve(ctx context.Context, s browser.Surface) (quiz.Handler, error)
}

type Exerciser interface {
	Run(ctx context.Context, s browser.Surface, h quiz.Handler) retry.Result
}

type Ledger interface {
	RunID() string
	Record(ctx context.Context, rec store.TaskRecord) error
	Succeeded(ctx context.Context, key string) (bool, error)
}

type Options struct {
	Username string
	Password string
	Book     string
	LoginURL string
	BookURL  string

	PageOffset int
	TabOffset  int
	TaskOffset int
	Resume     bool

	PageWait time.Duration
	TabWait  time.Duration
	TaskWait time.Duration

	NavTimeout time.Duration
	DialogWait time.Duration
	LayoutWait time.Duration
	// LoginWait is the pause after pressing the login button.
	LoginWait time.Duration
}

// OptionsFrom collects the runner settings spread over cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Username:   cfg.Platform.Username,
		Password:   cfg.Platform.Password,
		Book:       cfg.Platform.Book,
		LoginURL:   cfg.Platform.LoginURL,
		BookURL:    cfg.Platform.BookURL,
		PageOffset: cfg.Platform.PageOffset,
		TabOffset:  cfg.Platform.TabOffset,
		TaskOffset: cfg.Platform.TaskOffset,
		Resume:     cfg.Platform.Resume,
		PageWait:   cfg.Platform.PageWait,
		TabWait:    cfg.Platform.TabWait,
		TaskWait:   cfg.Platform.TaskWait,
		NavTimeout: cfg.Browser.NavTimeout,
		DialogWait: cfg.Timing.DialogWait,
		LayoutWait: cfg.Timing.LayoutWait,
		LoginWait:  time.Second,
	}
}

// Report summarises a run.
type Report struct {
	RunID       string
	Succeeded   int
	Skipped     int
	Resumed     int
	Unsupported int
	Failed      []string
}

type Runner struct {
	page     Page
	registry Resolver
	ctrl     Exerciser
	ledger   Ledger
	opts     Options
	logger   zerolog.Logger
}

func New(page Page, registry Resolver, ctrl Exerciser, ledger Ledger, opts Options, logger zerolog.Logger) *Runner {
	return &Runner{page: page, registry: registry, ctrl: ctrl, ledger: ledger, opts: opts, logger: logger}
}

// Run logs in, opens the book and answers everything from the configured
// offsets on. Task failures end up in the report; only setup failures and
// cancellation are returned as errors.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: r.ledger.RunID()}
	if err := r.Login(ctx); err != nil {
		return rep, fmt.Errorf("login: %w", err)
	}
	if err := r.OpenBook(ctx); err != nil {
		return rep, fmt.Errorf("open book: %w", err)
	}
	pages, ok := r.page.WaitAll(ctx, selPages, r.opts.NavTimeout)
	if !ok {
		return rep, errors.New("book has no pages")
	}
	r.logger.Info().Int("pages", len(pages)).Int("offset", r.opts.PageOffset).Msg("book opened")

	first := true
	for pi := r.opts.PageOffset; pi < len(pages); pi++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		// The menu re-renders after navigation.
		if pages, _ = r.page.FindAll(ctx, selPages); pi >= len(pages) {
			break
		}
		name := childText(ctx, pages[pi], selPageName)
		r.logger.Info().Int("page", pi).Str("name", name).Msg("entering page")
		if err := pages[pi].Click(ctx); err != nil {
			r.logger.Warn().Err(err).Str("page", name).Msg("page click failed")
			continue
		}
		r.dismiss(ctx)

		tabOffset, taskOffset := 0, 0
		if first {
			tabOffset, taskOffset = r.opts.TabOffset, r.opts.TaskOffset
			first = false
		}
		if err := r.runPage(ctx, name, tabOffset, taskOffset, &rep); err != nil {
			return rep, err
		}
		if err := browser.Pause(ctx, r.opts.PageWait); err != nil {
			return rep, err
		}
	}
	r.logger.Info().
		Int("succeeded", rep.Succeeded).
		Int("skipped", rep.Skipped).
		Int("resumed", rep.Resumed).
		Int("unsupported", rep.Unsupported).
		Int("failed", len(rep.Failed)).
		Msg("run finished")
	return rep, nil
}

// Login signs in with the configured account. A page that shows no login
// form within the navigation timeout is taken as already signed in.
func (r *Runner) Login(ctx context.Context) error {
	if err := r.page.Navigate(ctx, r.opts.LoginURL); err != nil {
		return err
	}
	if _, ok := r.page.WaitFor(ctx, selUsername, r.opts.NavTimeout); !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Info().Str("url", r.page.URL()).Msg("no login form, session restored")
		return nil
	}
	r.logger.Info().Str("user", r.opts.Username).Msg("logging in")
	if err := r.page.FillSelector(ctx, selUsername, r.opts.Username); err != nil {
		return err
	}
	if err := r.page.FillSelector(ctx, selPassword, r.opts.Password); err != nil {
		return err
	}
	for _, sel := range []string{selAgreement, selLoginButton} {
		el, ok, err := r.page.Find(ctx, sel)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("login form lacks %q", sel)
		}
		if err := el.Click(ctx); err != nil {
			return err
		}
	}
	return browser.Pause(ctx, r.opts.LoginWait)
}

// OpenBook navigates to the book and closes the introductory dialogs.
func (r *Runner) OpenBook(ctx context.Context) error {
	url := r.opts.BookURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, r.opts.Book)
	}
	r.logger.Info().Str("book", r.opts.Book).Msg("opening book")
	if err := r.page.Navigate(ctx, url); err != nil {
		return err
	}
	for _, sel := range []string{selCourseStart, selKnowTip, quiz.SelDialogButton} {
		if el, ok := r.page.WaitClickable(ctx, sel, r.opts.DialogWait); ok {
			if err := el.Click(ctx); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

func (r *Runner) runPage(ctx context.Context, pageName string, tabOffset, taskOffset int, rep *Report) error {
	tabs, err := r.page.FindAll(ctx, selTabs)
	if err != nil {
		return err
	}
	r.logger.Info().Str("page", pageName).Int("tabs", len(tabs)).Msg("walking tabs")
	firstTab := true
	for ti := tabOffset; ti < len(tabs); ti++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if tabs, _ = r.page.FindAll(ctx, selTabs); ti >= len(tabs) {
			break
		}
		tabName := childText(ctx, tabs[ti], selTabName)
		if err := tabs[ti].Click(ctx); err != nil {
			r.logger.Warn().Err(err).Str("tab", tabName).Msg("tab click failed")
			continue
		}
		r.dismiss(ctx)
		if _, ok := r.page.WaitFor(ctx, selLayout, r.opts.LayoutWait); !ok {
			r.logger.Warn().Str("tab", tabName).Msg("tab layout did not load")
		}

		offset := 0
		if firstTab {
			offset = taskOffset
			firstTab = false
		}
		if err := r.runTab(ctx, pageName, tabName, offset, rep); err != nil {
			return err
		}
		if err := browser.Pause(ctx, r.opts.TabWait); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runTab(ctx context.Context, pageName, tabName string, offset int, rep *Report) error {
	tasks, err := r.page.FindAll(ctx, selTasks)
	if err != nil {
		return err
	}
	r.logger.Info().Str("tab", tabName).Int("tasks", len(tasks)).Msg("walking tasks")
	for i := offset; i < len(tasks); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := TaskKey(pageName, tabName, i)
		if r.opts.Resume {
			done, err := r.ledger.Succeeded(ctx, key)
			if err != nil {
				r.logger.Warn().Err(err).Str("task", key).Msg("resume lookup")
			} else if done {
				r.logger.Info().Str("task", key).Msg("already done, skipping")
				rep.Resumed++
				continue
			}
		}
		if tasks, _ = r.page.FindAll(ctx, selTasks); i >= len(tasks) {
			break
		}

		rec := r.runTask(ctx, tasks[i], key)
		if err := ctx.Err(); err != nil {
			return err
		}
		switch rec.State {
		case store.StateSucceeded:
			rep.Succeeded++
		case store.StateSkipped:
			rep.Skipped++
		case store.StateUnsupported:
			rep.Unsupported++
			rep.Failed = append(rep.Failed, key)
		default:
			rep.Failed = append(rep.Failed, key)
		}
		if err := r.ledger.Record(ctx, rec); err != nil {
			r.logger.Warn().Err(err).Str("task", key).Msg("record outcome")
		}
		if err := browser.Pause(ctx, r.opts.TaskWait); err != nil {
			return err
		}
	}
	return nil
}

// TaskKey names a task the way failures are reported.
func TaskKey(page, tab string, index int) string {
	return fmt.Sprintf("%s-%s-Task%d", page, tab, index)
}

// runTask opens one task and answers it. Panics are contained here so one
// broken page cannot stop the run.
func (r *Runner) runTask(ctx context.Context, task browser.Element, key string) (rec store.TaskRecord) {
	rec = store.TaskRecord{TaskKey: key}
	log := r.logger.With().Str("task", key).Logger()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("task panicked")
			rec.State = store.StateFailed
			rec.Detail = fmt.Sprintf("panic: %v", p)
		}
		r.dismiss(ctx)
	}()

	log.Info().Msg("opening task")
	if err := task.Click(ctx); err != nil {
		rec.State = store.StateFailed
		rec.Detail = "click: " + err.Error()
		return rec
	}
	r.dismiss(ctx)
	if _, ok := r.page.WaitFor(ctx, selLayout, r.opts.LayoutWait); !ok {
		rec.State = store.StateUnsupported
		rec.Detail = "no exercise layout"
		log.Info().Msg("task has no exercise layout")
		return rec
	}

	h, err := r.registry.Resolve(ctx, r.page)
	if err != nil {
		rec.State = store.StateUnsupported
		if !errors.Is(err, quiz.ErrNoHandler) {
			rec.State = store.StateFailed
		}
		rec.Detail = err.Error()
		r.describe(ctx, log, &rec)
		return rec
	}
	rec.Layout = h.Layout().String()

	res := r.ctrl.Run(ctx, r.page, h)
	rec.Score = res.Score
	rec.Graded = res.Graded
	rec.Attempts = res.Attempts
	rec.Warnings = len(res.Warnings)
	rec.Detail = res.Reason
	if res.Err != nil {
		rec.Detail = strings.TrimSpace(res.Reason + ": " + res.Err.Error())
	}
	switch res.State {
	case retry.Succeeded:
		rec.State = store.StateSucceeded
	case retry.Skipped:
		rec.State = store.StateSkipped
	default:
		rec.State = store.StateFailed
	}
	return rec
}

// describe attaches a page summary to an unsupported task.
func (r *Runner) describe(ctx context.Context, log zerolog.Logger, rec *store.TaskRecord) {
	sctx, cancel := snapshot.WithDeadline(ctx, 5*time.Second)
	defer cancel()
	sum, err := snapshot.Collect(sctx, r.page, r.page.URL())
	if err != nil {
		log.Debug().Err(err).Msg("snapshot")
		return
	}
	log.Warn().
		Str("url", sum.URL).
		Strs("markers", sum.Classes()).
		Int("elements", len(sum.Elements)).
		Msg("no handler for layout")
	log.Debug().Msg(sum.String())
	rec.Detail = rec.Detail + "; markers: " + strings.Join(sum.Classes(), " ")
}

func (r *Runner) dismiss(ctx context.Context) {
	if el, ok := r.page.WaitClickable(ctx, quiz.SelDialogButton, r.opts.DialogWait); ok {
		if err := el.Click(ctx); err != nil {
			r.logger.Debug().Err(err).Msg("dismiss dialog")
		}
	}
}

func childText(ctx context.Context, el browser.Element, selector string) string {
	child, ok, err := el.Find(ctx, selector)
	if err != nil || !ok {
		return ""
	}
	text, err := child.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
