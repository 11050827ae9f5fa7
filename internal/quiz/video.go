package quiz

import (
	"context"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
)

const playScript = `(i) => {
	const v = document.querySelectorAll("video")[i];
	if (!v) return false;
	v.muted = true;
	return v.play().then(() => true, () => false);
}`

// videoWatchHandler plays every video on the page and waits a fixed time for
// each, which is all the platform checks.
type videoWatchHandler struct {
	deps Deps
}

func NewVideoWatch(deps Deps) Handler { return &videoWatchHandler{deps: deps} }

func (h *videoWatchHandler) Layout() Layout { return VideoWatch }
func (h *videoWatchHandler) Graded() bool   { return false }

func (h *videoWatchHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	videos, err := s.FindAll(ctx, selAnyVideo)
	if err != nil {
		return nil, err
	}
	return &Content{Videos: len(videos)}, nil
}

func (h *videoWatchHandler) BuildRequest(*Content, []string) *llm.Prompt { return nil }

func (h *videoWatchHandler) NewAnswer() Answer { return nil }

func (h *videoWatchHandler) Apply(ctx context.Context, s browser.Surface, c *Content, _ Answer) (Applied, error) {
	var res Applied
	h.deps.Log.Info().Int("videos", c.Videos).Msg("playing videos")
	for i := 0; i < c.Videos; i++ {
		v, err := s.Eval(ctx, playScript, i)
		if err != nil {
			return res, err
		}
		if ok, isBool := v.(bool); isBool && !ok {
			res.warn(h.deps.Log, "video refused to play")
		}
		res.Actions++
		if err := browser.Pause(ctx, h.deps.Timing.VideoWatch); err != nil {
			return res, err
		}
	}
	return res, nil
}
