package quiz

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
)

type selectionHandler struct {
	layout   Layout
	material material
	deps     Deps
}

func NewAudioSelection(deps Deps) Handler {
	return &selectionHandler{layout: AudioSelection, material: audioMaterial(deps.Media), deps: deps}
}

func NewVideoSelection(deps Deps) Handler {
	return &selectionHandler{layout: VideoSelection, material: videoMaterial(deps.Media), deps: deps}
}

func (h *selectionHandler) Layout() Layout { return h.layout }
func (h *selectionHandler) Graded() bool   { return true }

func (h *selectionHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	c := &Content{}
	var err error
	if c.Tips, err = extractTips(ctx, s); err != nil {
		return nil, err
	}
	if c.Material, err = h.material(ctx, s); err != nil {
		return nil, err
	}
	rows, err := s.FindAll(ctx, selSelectionRow)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		raw, err := r.OuterHTML(ctx)
		if err != nil {
			return nil, err
		}
		// A bare cell is dropped by the HTML parser outside a table.
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(
			"<table><tbody><tr>" + raw + "</tr></tbody></table>"))
		if err != nil {
			return nil, fmt.Errorf("parse selection row: %w", err)
		}
		cell := doc.Find("tr").Children().First()
		q := SelectionQuestion{Question: directText(cell)}
		cell.Find("ol li").Each(func(i int, li *goquery.Selection) {
			q.Options = append(q.Options, Option{Caption: strconv.Itoa(i), Content: strings.TrimSpace(li.Text())})
		})
		c.Selections = append(c.Selections, q)
	}
	return c, nil
}

func (h *selectionHandler) BuildRequest(c *Content, feedback []string) *llm.Prompt {
	var qs strings.Builder
	for i, q := range c.Selections {
		fmt.Fprintf(&qs, "%d. %s\n", i+1, q.Question)
		for _, o := range q.Options {
			fmt.Fprintf(&qs, "   %s. %s\n", o.Caption, o.Content)
		}
	}
	return &llm.Prompt{
		Instruction: "For each question pick the one numbered option that best fits the material. " +
			"Return the option numbers in question order.",
		Sections: []llm.Section{
			{Title: "Material", Body: c.Material},
			{Title: "Questions", Body: qs.String()},
		},
		Hints:    c.Tips,
		Feedback: feedback,
		Schema:   selectionSchema,
	}
}

func (h *selectionHandler) NewAnswer() Answer { return &SelectionAnswer{} }

func (h *selectionHandler) Apply(ctx context.Context, s browser.Surface, _ *Content, a Answer) (Applied, error) {
	var res Applied
	captions := a.(*SelectionAnswer).Captions
	rows, err := s.FindAll(ctx, selSelectionRow)
	if err != nil {
		return res, err
	}
	if len(captions) != len(rows) {
		res.warn(h.deps.Log, fmt.Sprintf("%d answers for %d dropdowns", len(captions), len(rows)))
	}
	for i, row := range rows {
		if i >= len(captions) {
			break
		}
		if err := h.choose(ctx, row, i, captions[i], &res); err != nil {
			return res, err
		}
	}
	return res, submit(ctx, s, h.deps.Timing.Submit, h.deps.Log)
}

func (h *selectionHandler) choose(ctx context.Context, row browser.Element, i, idx int, res *Applied) error {
	widget, ok, err := row.Find(ctx, selSelectionWidget)
	if err != nil {
		return err
	}
	if !ok {
		res.warn(h.deps.Log, fmt.Sprintf("dropdown %d has no widget", i+1))
		return nil
	}
	trigger, ok, err := widget.Find(ctx, selSelectionOpen)
	if err != nil {
		return err
	}
	if !ok {
		res.warn(h.deps.Log, fmt.Sprintf("dropdown %d has no trigger", i+1))
		return nil
	}
	if err := trigger.Click(ctx); err != nil {
		return err
	}
	if err := browser.Pause(ctx, h.deps.Timing.Dropdown); err != nil {
		return err
	}
	items, err := widget.FindAll(ctx, selSelectionItem)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		res.warn(h.deps.Log, fmt.Sprintf("dropdown %d opened without options", i+1))
		return nil
	}
	if idx < 0 || idx >= len(items) {
		res.warn(h.deps.Log, fmt.Sprintf("dropdown %d: option %d out of range, first option chosen", i+1, idx))
		idx = 0
	}
	if err := items[idx].Click(ctx); err != nil {
		return err
	}
	res.Actions++
	h.deps.Log.Info().Int("dropdown", i+1).Int("option", idx).Msg("option selected")
	return nil
}
