package quiz

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
)

type blankHandler struct {
	layout   Layout
	material material
	deps     Deps
}

func NewAudioBlankFilling(deps Deps) Handler {
	return &blankHandler{layout: AudioBlankFilling, material: audioMaterial(deps.Media), deps: deps}
}

func NewVideoBlankFilling(deps Deps) Handler {
	return &blankHandler{layout: VideoBlankFilling, material: videoMaterial(deps.Media), deps: deps}
}

func (h *blankHandler) Layout() Layout { return h.layout }
func (h *blankHandler) Graded() bool   { return true }

func (h *blankHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	c := &Content{}
	var err error
	if c.Tips, err = extractTips(ctx, s); err != nil {
		return nil, err
	}
	if c.Material, err = h.material(ctx, s); err != nil {
		return nil, err
	}
	areas, err := s.FindAll(ctx, selScoopAreas)
	if err != nil {
		return nil, err
	}
	if len(areas) == 0 {
		if areas, err = s.FindAll(ctx, selScoopParagraphs); err != nil {
			return nil, err
		}
	}
	var paragraphs []string
	for _, a := range areas {
		doc, err := parseElement(ctx, a)
		if err != nil {
			return nil, err
		}
		root := doc.Find("p").First()
		if root.Length() == 0 {
			root = doc.Find("body").Children().First()
		}
		text, n := ScoopText(root)
		c.Blanks += n
		if strings.TrimSpace(text) != "" {
			paragraphs = append(paragraphs, strings.TrimSpace(text))
		}
	}
	c.Text = strings.Join(paragraphs, "\n")
	return c, nil
}

// ScoopText renders a paragraph with each indexed blank replaced by
// "n)___", n being the 1-based scoop index. It returns the text and the
// number of blanks seen.
func ScoopText(sel *goquery.Selection) (string, int) {
	var b strings.Builder
	blanks := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				if idx, ok := scoopIndex(c); ok {
					if idx >= 0 {
						fmt.Fprintf(&b, "%d)___", idx+1)
						blanks++
					}
					continue
				}
				walk(c)
			}
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String(), blanks
}

func scoopIndex(n *html.Node) (int, bool) {
	isScoop := false
	idx := -1
	for _, a := range n.Attr {
		switch a.Key {
		case "class":
			for _, cl := range strings.Fields(a.Val) {
				if cl == classScoop {
					isScoop = true
				}
			}
		case "data-scoop-index":
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil {
				idx = v
			}
		}
	}
	return idx, isScoop
}

func (h *blankHandler) BuildRequest(c *Content, feedback []string) *llm.Prompt {
	return &llm.Prompt{
		Instruction: fmt.Sprintf("Using the material and tips, work out the correct word form for each "+
			"numbered blank such as 1)___ in the text. Return the %d words in blank order.", c.Blanks),
		Sections: []llm.Section{
			{Title: "Material", Body: c.Material},
			{Title: "Text", Body: c.Text},
		},
		Hints:    c.Tips,
		Feedback: feedback,
		Schema:   blanksSchema,
	}
}

func (h *blankHandler) NewAnswer() Answer { return &BlanksAnswer{} }

func (h *blankHandler) Apply(ctx context.Context, s browser.Surface, _ *Content, a Answer) (Applied, error) {
	res, err := fillBlanks(ctx, s, a.(*BlanksAnswer).Blanks, h.deps.Log)
	if err != nil {
		return res, err
	}
	return res, submit(ctx, s, h.deps.Timing.Submit, h.deps.Log)
}

type correctionHandler struct {
	deps Deps
}

func NewWordCorrection(deps Deps) Handler { return &correctionHandler{deps: deps} }

func (h *correctionHandler) Layout() Layout { return WordCorrection }
func (h *correctionHandler) Graded() bool   { return true }

func (h *correctionHandler) Extract(ctx context.Context, s browser.Surface) (*Content, error) {
	doc, ok, err := parseFirst(ctx, s, selCorrectionText)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("correction text %q missing", selCorrectionText)
	}
	gaps := doc.Find(selCorrectionGap)
	c := &Content{Blanks: gaps.Length()}
	gaps.ReplaceWithHtml("___")
	c.Text = pureText(doc.Find("body"))
	return c, nil
}

func (h *correctionHandler) BuildRequest(c *Content, feedback []string) *llm.Prompt {
	return &llm.Prompt{
		Instruction: "Replace every ___ in the text with the correct form of the English word given in " +
			"the brackets after it. Return the words in order.",
		Sections: []llm.Section{{Title: "Text", Body: c.Text}},
		Feedback: feedback,
		Schema:   blanksSchema,
	}
}

func (h *correctionHandler) NewAnswer() Answer { return &BlanksAnswer{} }

func (h *correctionHandler) Apply(ctx context.Context, s browser.Surface, _ *Content, a Answer) (Applied, error) {
	res, err := fillBlanks(ctx, s, a.(*BlanksAnswer).Blanks, h.deps.Log)
	if err != nil {
		return res, err
	}
	return res, submit(ctx, s, h.deps.Timing.Submit, h.deps.Log)
}
