package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
)

// MinPeers is the number of peer posts below which a discussion is not
// worth answering.
const MinPeers = 5

type discussionHandler struct {
	deps Deps
}

func NewDiscussion(deps Deps) Handler { return &discussionHandler{deps: deps} }

func (h *discussionHandler) Layout() Layout { return Discussion }
func (h *discussionHandler) Graded() bool   { return false }

func (h *discussionHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	posts, _ := s.WaitAll(ctx, selPeerPost, h.deps.Timing.PeerWait)
	if len(posts) < MinPeers {
		return &Content{
			Skip:       true,
			SkipReason: fmt.Sprintf("%d peer posts, need %d", len(posts), MinPeers),
		}, nil
	}
	c := &Content{}
	for _, p := range posts {
		doc, err := parseElement(ctx, p)
		if err != nil {
			return nil, err
		}
		if t := strings.TrimSpace(doc.Find(selPeerContent).First().Text()); t != "" {
			c.Peers = append(c.Peers, t)
		}
	}
	if el, ok, err := s.Find(ctx, selTopicTitle); err != nil {
		return nil, err
	} else if ok {
		if c.Title, err = el.Text(ctx); err != nil {
			return nil, err
		}
	}
	doc, ok, err := parseFirst(ctx, s, selTopicBody)
	if err != nil {
		return nil, err
	}
	if ok {
		c.Body = pureText(doc.Selection)
	}
	return c, nil
}

func (h *discussionHandler) BuildRequest(c *Content, feedback []string) *llm.Prompt {
	var peers strings.Builder
	for i, p := range c.Peers {
		fmt.Fprintf(&peers, "%d. %s\n", i+1, p)
	}
	return &llm.Prompt{
		Instruction: "Below are a discussion topic and posts by other students. Write one post that " +
			"averages what the others say. Keep it shorter than theirs, ideally 15 to 30 words.",
		Sections: []llm.Section{
			{Title: "Topic", Body: c.Title},
			{Title: "Topic content", Body: c.Body},
			{Title: "Other posts", Body: peers.String()},
		},
		Feedback: feedback,
		Schema:   discussionSchema,
	}
}

func (h *discussionHandler) NewAnswer() Answer { return &DiscussionAnswer{} }

func (h *discussionHandler) Apply(ctx context.Context, s browser.Surface, _ *Content, a Answer) (Applied, error) {
	var res Applied
	ans := a.(*DiscussionAnswer)
	input, ok, err := s.Find(ctx, selDiscussInput)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, fmt.Errorf("discussion input %q missing", selDiscussInput)
	}
	if err := input.Clear(ctx); err != nil {
		return res, err
	}
	if err := input.Fill(ctx, ans.Answer); err != nil {
		return res, err
	}
	res.Actions++
	h.deps.Log.Info().Str("post", ans.Answer).Msg("discussion post typed")

	btn, ok := s.WaitClickable(ctx, selDiscussSubmit, h.deps.Timing.Submit)
	if !ok {
		res.warn(h.deps.Log, "discussion submit button not clickable")
		return res, nil
	}
	if err := btn.Click(ctx); err != nil {
		return res, err
	}
	res.Actions++
	return res, nil
}
