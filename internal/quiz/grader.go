package quiz

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/autoanswer/internal/browser"
)

// Captions the course button shows once the exercise can no longer be
// redone.
var continueCaptions = map[string]bool{
	"查看答题小结": true,
	"继续学习":   true,
	"继续任务":   true,
}

// Grader drives the platform's scoring widgets.
type Grader struct {
	ScoreTimeout  time.Duration
	ActionTimeout time.Duration
	DialogWait    time.Duration
	Log           zerolog.Logger
}

// ReadScore waits for the score readout. ok is false when no readable score
// shows up in time, which marks the exercise as ungraded.
func (g *Grader) ReadScore(ctx context.Context, s browser.Surface) (float64, bool, error) {
	el, ok := s.WaitFor(ctx, SelScore, g.ScoreTimeout)
	if !ok {
		return 0, false, ctx.Err()
	}
	text, err := el.Text(ctx)
	if err != nil {
		return 0, false, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		g.Log.Warn().Str("text", text).Msg("score readout is not a number")
		return 0, false, nil
	}
	return score, true, nil
}

// Redo reopens the exercise for another attempt. It reports false when the
// course button is gone or only offers to move on; the controller then ends
// the task as failed rather than completed, so a resumed run revisits it.
func (g *Grader) Redo(ctx context.Context, s browser.Surface) (bool, error) {
	if err := g.dismiss(ctx, s); err != nil {
		return false, err
	}
	btn, ok := s.WaitClickable(ctx, SelSubmit, g.ActionTimeout)
	if !ok {
		g.Log.Info().Msg("redo button missing")
		return false, ctx.Err()
	}
	caption, err := btn.Text(ctx)
	if err != nil {
		return false, err
	}
	if continueCaptions[strings.TrimSpace(caption)] {
		g.Log.Info().Str("caption", caption).Msg("exercise closed for redo")
		return false, nil
	}
	if err := btn.Click(ctx); err != nil {
		return false, err
	}
	return true, g.dismiss(ctx, s)
}

// Conclude leaves an exhausted exercise the way a user would.
func (g *Grader) Conclude(ctx context.Context, s browser.Surface) error {
	if btn, ok := s.WaitClickable(ctx, SelSubmit, g.ActionTimeout); ok {
		if err := btn.Click(ctx); err != nil {
			return err
		}
	}
	return g.dismiss(ctx, s)
}

func (g *Grader) dismiss(ctx context.Context, s browser.Surface) error {
	btn, ok := s.WaitClickable(ctx, SelDialogButton, g.DialogWait)
	if !ok {
		return ctx.Err()
	}
	return btn.Click(ctx)
}
