package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
)

type choiceHandler struct {
	layout   Layout
	material material
	deps     Deps
}

func NewAudioChoice(deps Deps) Handler {
	return &choiceHandler{layout: AudioChoice, material: audioMaterial(deps.Media), deps: deps}
}

func NewVideoChoice(deps Deps) Handler {
	return &choiceHandler{layout: VideoChoice, material: videoMaterial(deps.Media), deps: deps}
}

func NewArticleChoice(deps Deps) Handler {
	return &choiceHandler{layout: ArticleChoice, material: articleMaterial, deps: deps}
}

func (h *choiceHandler) Layout() Layout { return h.layout }
func (h *choiceHandler) Graded() bool   { return true }

func (h *choiceHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	c := &Content{}
	var err error
	if c.Tips, err = extractTips(ctx, s); err != nil {
		return nil, err
	}
	if c.Material, err = h.material(ctx, s); err != nil {
		return nil, err
	}
	blocks, err := s.FindAll(ctx, selChoice)
	if err != nil {
		return nil, err
	}
	for i, b := range blocks {
		multiple, err := b.HasClass(ctx, classMultiple)
		if err != nil {
			return nil, err
		}
		doc, err := parseElement(ctx, b)
		if err != nil {
			return nil, err
		}
		q := ChoiceQuestion{
			Index: i,
			Title: strings.TrimSpace(doc.Find(selChoiceTitle).First().Text()),
		}
		doc.Find(selChoiceOption).Each(func(_ int, o *goquery.Selection) {
			q.Options = append(q.Options, Option{
				Caption: strings.TrimSpace(o.Find(selChoiceCaption).First().Text()),
				Content: strings.TrimSpace(o.Find(selChoiceContent).First().Text()),
			})
		})
		if multiple {
			c.Multiples = append(c.Multiples, q)
		} else {
			c.Singles = append(c.Singles, q)
		}
	}
	return c, nil
}

func (h *choiceHandler) BuildRequest(c *Content, feedback []string) *llm.Prompt {
	return &llm.Prompt{
		Instruction: "Use the material and tips to pick the best answer for every question. " +
			"Single-answer questions take exactly one caption, multiple-answer questions take " +
			"every correct caption. Return answers in question order.",
		Sections: []llm.Section{
			{Title: "Material", Body: c.Material},
			{Title: "Single-answer questions", Body: formatChoices(c.Singles)},
			{Title: "Multiple-answer questions", Body: formatChoices(c.Multiples)},
		},
		Hints:    c.Tips,
		Feedback: feedback,
		Schema:   choiceSchema,
	}
}

func formatChoices(qs []ChoiceQuestion) string {
	var b strings.Builder
	for i, q := range qs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Title)
		for _, o := range q.Options {
			fmt.Fprintf(&b, "   %s. %s\n", o.Caption, o.Content)
		}
	}
	return b.String()
}

func (h *choiceHandler) NewAnswer() Answer { return &ChoiceAnswer{} }

// Apply clicks the options named by the answer. A question whose answer is
// missing or names no on-page option gets its first option instead.
func (h *choiceHandler) Apply(ctx context.Context, s browser.Surface, c *Content, a Answer) (Applied, error) {
	var res Applied
	ans := a.(*ChoiceAnswer)
	blocks, err := s.FindAll(ctx, selChoice)
	if err != nil {
		return res, err
	}
	for i, q := range c.Singles {
		var want []string
		if i < len(ans.SingleChoices) {
			want = []string{ans.SingleChoices[i].Caption}
		}
		if err := h.choose(ctx, blocks, q, want, false, &res); err != nil {
			return res, err
		}
	}
	for i, q := range c.Multiples {
		var want []string
		if i < len(ans.MultipleChoices) {
			want = ans.MultipleChoices[i].Captions
		}
		if err := h.choose(ctx, blocks, q, want, true, &res); err != nil {
			return res, err
		}
	}
	return res, submit(ctx, s, h.deps.Timing.Submit, h.deps.Log)
}

func (h *choiceHandler) choose(ctx context.Context, blocks []browser.Element, q ChoiceQuestion, want []string, multiple bool, res *Applied) error {
	if q.Index >= len(blocks) {
		res.warn(h.deps.Log, fmt.Sprintf("question %d vanished from the page", q.Index+1))
		return nil
	}
	captions, err := optionCaptions(ctx, blocks[q.Index])
	if err != nil {
		return err
	}
	if len(captions) == 0 {
		res.warn(h.deps.Log, fmt.Sprintf("question %d has no options", q.Index+1))
		return nil
	}
	wanted := make(map[string]bool, len(want))
	for _, w := range want {
		wanted[normalizeCaption(w)] = true
	}
	clicked := 0
	for _, opt := range captions {
		text, err := opt.Text(ctx)
		if err != nil {
			return err
		}
		if !wanted[normalizeCaption(text)] {
			continue
		}
		if err := clickParent(ctx, opt); err != nil {
			return err
		}
		clicked++
		res.Actions++
		if !multiple {
			break
		}
	}
	if clicked == 0 {
		res.warn(h.deps.Log, fmt.Sprintf("question %d: answer %v matches no option, first option chosen", q.Index+1, want))
		if err := clickParent(ctx, captions[0]); err != nil {
			return err
		}
		res.Actions++
		return nil
	}
	h.deps.Log.Info().Int("question", q.Index+1).Strs("captions", want).Msg("choice made")
	return nil
}

func optionCaptions(ctx context.Context, block browser.Element) ([]browser.Element, error) {
	wrap, ok, err := block.Find(ctx, selChoiceOptWrap)
	if err != nil {
		return nil, err
	}
	if ok {
		return wrap.FindAll(ctx, selChoiceCaption)
	}
	return block.FindAll(ctx, selChoiceCaption)
}

func clickParent(ctx context.Context, el browser.Element) error {
	p, err := el.Parent(ctx)
	if err != nil {
		return err
	}
	return p.Click(ctx)
}
