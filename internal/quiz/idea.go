package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
)

// ideaHandler answers open questions typed into text boxes. Nothing grades
// them.
type ideaHandler struct {
	layout   Layout
	material material
	tips     bool
	deps     Deps
}

func NewIdeaWithMedia(deps Deps) Handler {
	return &ideaHandler{layout: IdeaWithMedia, material: mediaMaterial(deps.Media), tips: true, deps: deps}
}

func NewIdeaWithArticle(deps Deps) Handler {
	return &ideaHandler{layout: IdeaWithArticle, material: articleMaterial, deps: deps}
}

func (h *ideaHandler) Layout() Layout { return h.layout }
func (h *ideaHandler) Graded() bool   { return false }

func (h *ideaHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	c := &Content{}
	var err error
	if h.tips {
		if c.Tips, err = extractTips(ctx, s); err != nil {
			return nil, err
		}
	}
	if c.Material, err = h.material(ctx, s); err != nil {
		return nil, err
	}
	boxes, err := s.FindAll(ctx, selIdeaBox)
	if err != nil {
		return nil, err
	}
	for _, b := range boxes {
		doc, err := parseElement(ctx, b)
		if err != nil {
			return nil, err
		}
		c.Questions = append(c.Questions, strings.TrimSpace(doc.Find(selIdeaHeader).First().Text()))
	}
	return c, nil
}

func (h *ideaHandler) BuildRequest(c *Content, feedback []string) *llm.Prompt {
	var qs strings.Builder
	for i, q := range c.Questions {
		fmt.Fprintf(&qs, "%d. %s\n", i+1, q)
	}
	title := "Material"
	if h.layout == IdeaWithArticle {
		title = "Passage"
	}
	return &llm.Prompt{
		Instruction: "Answer each question from the material in a few sentences of plain English. " +
			"Return the answers in question order.",
		Sections: []llm.Section{
			{Title: title, Body: c.Material},
			{Title: "Questions", Body: qs.String()},
		},
		Hints:    c.Tips,
		Feedback: feedback,
		Schema:   ideaSchema,
	}
}

func (h *ideaHandler) NewAnswer() Answer { return &IdeaAnswer{} }

func (h *ideaHandler) Apply(ctx context.Context, s browser.Surface, c *Content, a Answer) (Applied, error) {
	var res Applied
	answers := a.(*IdeaAnswer).Answers
	fields, err := s.FindAll(ctx, selIdeaInput)
	if err != nil {
		return res, err
	}
	for i, f := range fields {
		if i >= len(answers) {
			res.warn(h.deps.Log, fmt.Sprintf("%d answers for %d questions, remaining left empty", len(answers), len(fields)))
			break
		}
		if err := f.Clear(ctx); err != nil {
			return res, err
		}
		if err := f.Fill(ctx, answers[i]); err != nil {
			return res, err
		}
		q := ""
		if i < len(c.Questions) {
			q = c.Questions[i]
		}
		h.deps.Log.Info().Str("question", q).Str("answer", answers[i]).Msg("idea answered")
		res.Actions++
	}
	return res, submit(ctx, s, h.deps.Timing.Submit, h.deps.Log)
}
