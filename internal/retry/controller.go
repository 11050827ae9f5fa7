// Package retry runs one exercise through extract, infer, apply and scoring,
// redoing it with the wrong answers fed back until it passes or the retry
// budget runs out.
package retry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
	"github.com/polzovatel/autoanswer/internal/quiz"
)

type State int

const (
	Attempting State = iota + 1
	Scoring
	Succeeded
	Retrying
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Scoring:
		return "scoring"
	case Succeeded:
		return "succeeded"
	case Retrying:
		return "retrying"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

type Inferer interface {
	Infer(ctx context.Context, p *llm.Prompt, out any) error
}

type Grader interface {
	ReadScore(ctx context.Context, s browser.Surface) (float64, bool, error)
	Redo(ctx context.Context, s browser.Surface) (bool, error)
	Conclude(ctx context.Context, s browser.Surface) error
}

type Config struct {
	MaxRetries int
	PassScore  float64
}

// DefaultConfig matches the platform's pass mark.
var DefaultConfig = Config{MaxRetries: 2, PassScore: 60}

// Result is the outcome of one exercise. Failure is reported here, never
// returned as an error.
type Result struct {
	Layout   quiz.Layout
	State    State
	Attempts int
	Score    float64
	Graded   bool
	Feedback []string
	Warnings []string
	Reason   string
	Err      error
}

// session is the mutable state of one Run.
type session struct {
	attempt  int
	last     quiz.Answer
	feedback []string
}

type Controller struct {
	cfg    Config
	llm    Inferer
	grader Grader
	logger zerolog.Logger
}

func NewController(cfg Config, inf Inferer, grader Grader, logger zerolog.Logger) *Controller {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Controller{cfg: cfg, llm: inf, grader: grader, logger: logger}
}

// Run drives h on s until a terminal state.
func (c *Controller) Run(ctx context.Context, s browser.Surface, h quiz.Handler) Result {
	res := Result{Layout: h.Layout()}
	log := c.logger.With().Str("layout", h.Layout().String()).Logger()
	var sess session

	state := Attempting
	log.Info().Str("state", state.String()).Int("attempt", 0).Msg("exercise started")
	for !state.Terminal() {
		next := c.step(ctx, s, h, state, &sess, &res, log)
		log.Info().
			Str("from", state.String()).
			Str("to", next.String()).
			Int("attempt", sess.attempt).
			Float64("score", res.Score).
			Msg("state change")
		state = next
	}

	res.State = state
	res.Attempts = sess.attempt + 1
	res.Feedback = sess.feedback
	ev := log.Info()
	if state == Failed {
		ev = log.Warn().Err(res.Err)
	}
	ev.Str("state", state.String()).
		Int("attempts", res.Attempts).
		Float64("score", res.Score).
		Bool("graded", res.Graded).
		Str("reason", res.Reason).
		Msg("exercise finished")
	return res
}

func (c *Controller) step(ctx context.Context, s browser.Surface, h quiz.Handler, state State, sess *session, res *Result, log zerolog.Logger) State {
	fail := func(reason string, err error) State {
		res.Reason = reason
		res.Err = err
		return Failed
	}

	switch state {
	case Attempting:
		content, err := h.Extract(ctx, s)
		if err != nil {
			return fail("extract", err)
		}
		if content.Skip {
			res.Reason = content.SkipReason
			return Skipped
		}
		var ans quiz.Answer
		if p := h.BuildRequest(content, sess.feedback); p != nil {
			ans = h.NewAnswer()
			if err := c.llm.Infer(ctx, p, ans); err != nil {
				return fail("infer", err)
			}
		}
		applied, err := h.Apply(ctx, s, content, ans)
		res.Warnings = append(res.Warnings, applied.Warnings...)
		if err != nil {
			return fail("apply", err)
		}
		sess.last = ans
		if !h.Graded() {
			return Succeeded
		}
		return Scoring

	case Scoring:
		score, ok, err := c.grader.ReadScore(ctx, s)
		if err != nil {
			return fail("score", err)
		}
		if !ok {
			log.Info().Msg("no score shown, treating exercise as ungraded")
			res.Graded = false
			return Succeeded
		}
		res.Graded = true
		res.Score = score
		if score >= c.cfg.PassScore {
			return Succeeded
		}
		if sess.attempt < c.cfg.MaxRetries {
			return Retrying
		}
		res.Reason = fmt.Sprintf("score %.1f below %.1f after %d attempts", score, c.cfg.PassScore, sess.attempt+1)
		if err := c.grader.Conclude(ctx, s); err != nil {
			log.Warn().Err(err).Msg("conclude exercise")
		}
		return Failed

	case Retrying:
		if sess.last != nil {
			sess.feedback = append(sess.feedback, sess.last.Feedback())
		}
		ok, err := c.grader.Redo(ctx, s)
		if err != nil {
			return fail("redo", err)
		}
		if !ok {
			return fail("redo unavailable", nil)
		}
		sess.attempt++
		return Attempting
	}
	return fail("unexpected state "+state.String(), nil)
}
