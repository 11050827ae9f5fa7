package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
)

type dragSortHandler struct {
	layout   Layout
	material material
	deps     Deps
}

func NewAudioDragSort(deps Deps) Handler {
	return &dragSortHandler{layout: AudioDragSort, material: audioMaterial(deps.Media), deps: deps}
}

func NewVideoDragSort(deps Deps) Handler {
	return &dragSortHandler{layout: VideoDragSort, material: videoMaterial(deps.Media), deps: deps}
}

func (h *dragSortHandler) Layout() Layout { return h.layout }
func (h *dragSortHandler) Graded() bool   { return true }

func (h *dragSortHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	c := &Content{}
	var err error
	if c.Tips, err = extractTips(ctx, s); err != nil {
		return nil, err
	}
	if c.Material, err = h.material(ctx, s); err != nil {
		return nil, err
	}
	if c.Items, err = sortItems(ctx, s); err != nil {
		return nil, err
	}
	return c, nil
}

func sortItems(ctx context.Context, s browser.Surface) ([]string, error) {
	els, err := s.FindAll(ctx, selSortItem)
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, len(els))
	for _, el := range els {
		doc, err := parseElement(ctx, el)
		if err != nil {
			return nil, err
		}
		items = append(items, pureText(doc.Find("body")))
	}
	return items, nil
}

func (h *dragSortHandler) BuildRequest(c *Content, feedback []string) *llm.Prompt {
	var items strings.Builder
	for i, it := range c.Items {
		fmt.Fprintf(&items, "%d. %s\n", i, strings.ReplaceAll(it, "\n", " "))
	}
	return &llm.Prompt{
		Instruction: fmt.Sprintf("Put the %d items into the order the material supports. Return, for each "+
			"position from first to last, the 0-based number of the item that belongs there. If the "+
			"material is not enough, return any order.", len(c.Items)),
		Sections: []llm.Section{
			{Title: "Material", Body: c.Material},
			{Title: "Items", Body: items.String()},
		},
		Hints:    c.Tips,
		Feedback: feedback,
		Schema:   orderSchema,
	}
}

func (h *dragSortHandler) NewAnswer() Answer { return &OrderAnswer{} }

// Apply reorders the list with adjacent drags, then reads it back. A list
// that ends up in another order is reported, not retried.
func (h *dragSortHandler) Apply(ctx context.Context, s browser.Surface, c *Content, a Answer) (Applied, error) {
	var res Applied
	orders := a.(*OrderAnswer).Orders
	n := len(c.Items)
	target := RepairPermutation(orders, n)
	if !isPermutation(orders, n) {
		res.warn(h.deps.Log, fmt.Sprintf("order %v is not a permutation of %d items, repaired to %v", orders, n, target))
	}
	plan := SwapPlan(target)
	h.deps.Log.Info().Ints("target", target).Int("swaps", len(plan)).Msg("reordering items")

	for _, p := range plan {
		els, err := s.FindAll(ctx, selSortItem)
		if err != nil {
			return res, err
		}
		if p+1 >= len(els) {
			res.warn(h.deps.Log, fmt.Sprintf("list shrank to %d items mid-sort", len(els)))
			break
		}
		from, err := els[p+1].Rect(ctx)
		if err != nil {
			return res, err
		}
		to, err := els[p].Rect(ctx)
		if err != nil {
			return res, err
		}
		if err := s.Drag(ctx, from.Center(), to.Center()); err != nil {
			return res, err
		}
		res.Actions++
		if err := browser.Pause(ctx, h.deps.Timing.DragStep); err != nil {
			return res, err
		}
	}

	got, err := sortItems(ctx, s)
	if err != nil {
		return res, err
	}
	want := make([]string, 0, n)
	for _, idx := range target {
		want = append(want, c.Items[idx])
	}
	if strings.Join(got, "\x00") != strings.Join(want, "\x00") {
		res.warn(h.deps.Log, "list order after dragging differs from the target")
	}
	return res, submit(ctx, s, h.deps.Timing.Submit, h.deps.Log)
}
