// Package browsertest provides an in-memory browser.Surface backed by a
// parsed HTML document. Clicks, fills and drags mutate the document the way
// the real platform widgets would, closely enough for handler tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/polzovatel/autoanswer/internal/browser"
)

// RowHeight is the synthetic height of every element box.
const RowHeight = 20.0

type hook struct {
	selector string
	fn       func(*Page)
}

// Page is a fake browser.Surface.
type Page struct {
	doc     *goquery.Document
	hooks   []hook
	clicked []*html.Node
	Scripts []string
	Drags   [][2]browser.Point
	// Visited lists every URL passed to Navigate.
	Visited []string
	// OnNavigate, when set, runs after each Navigate call.
	OnNavigate func(p *Page, url string)
	// EvalFunc, when set, answers Eval calls.
	EvalFunc func(script string, args []any) (any, error)
}

var _ browser.Surface = (*Page)(nil)

// New parses markup into a Page.
func New(markup string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &Page{doc: doc}, nil
}

// MustNew is New for tests.
func MustNew(t testing.TB, markup string) *Page {
	t.Helper()
	p, err := New(markup)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// OnClick runs fn whenever a node matching selector is clicked.
func (p *Page) OnClick(selector string, fn func(*Page)) {
	p.hooks = append(p.hooks, hook{selector: selector, fn: fn})
}

// Append parses markup and appends it to every node matching selector.
func (p *Page) Append(selector, markup string) {
	p.doc.Find(selector).AppendHtml(markup)
}

// Remove deletes every node matching selector.
func (p *Page) Remove(selector string) {
	p.doc.Find(selector).Remove()
}

// Clicked returns the trimmed text of every clicked node, in click order.
func (p *Page) Clicked() []string {
	out := make([]string, 0, len(p.clicked))
	for _, n := range p.clicked {
		out = append(out, strings.TrimSpace(p.doc.FindNodes(n).Text()))
	}
	return out
}

// ClickCount counts clicks on nodes matching selector.
func (p *Page) ClickCount(selector string) int {
	c := 0
	for _, n := range p.clicked {
		if p.sel(n).Is(selector) {
			c++
		}
	}
	return c
}

// Values returns the filled value of every node matching selector.
func (p *Page) Values(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "input" {
			v, _ := s.Attr("value")
			out = append(out, v)
			return
		}
		out = append(out, s.Text())
	})
	return out
}

// Texts returns the trimmed text of every node matching selector.
func (p *Page) Texts(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

// Navigate records url. The document changes only through OnNavigate.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Visited = append(p.Visited, url)
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

// URL is the last navigated URL.
func (p *Page) URL() string {
	if len(p.Visited) == 0 {
		return "about:blank"
	}
	return p.Visited[len(p.Visited)-1]
}

// FillSelector fills the first match of selector.
func (p *Page) FillSelector(ctx context.Context, selector, text string) error {
	el, ok, err := p.Find(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	return el.Fill(ctx, text)
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.doc.Find(selector).Length() > 0, nil
}

func (p *Page) Find(ctx context.Context, selector string) (browser.Element, bool, error) {
	return p.first(ctx, p.doc.Find(selector))
}

func (p *Page) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return p.all(ctx, p.doc.Find(selector))
}

func (p *Page) WaitFor(ctx context.Context, selector string, _ time.Duration) (browser.Element, bool) {
	el, ok, err := p.Find(ctx, selector)
	if err != nil || !ok {
		return nil, false
	}
	return el, true
}

func (p *Page) WaitAll(ctx context.Context, selector string, _ time.Duration) ([]browser.Element, bool) {
	els, err := p.FindAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return nil, false
	}
	return els, true
}

// WaitClickable treats a disabled attribute as not clickable.
func (p *Page) WaitClickable(ctx context.Context, selector string, timeout time.Duration) (browser.Element, bool) {
	el, ok := p.WaitFor(ctx, selector, timeout)
	if !ok {
		return nil, false
	}
	if _, disabled := p.sel(el.(*element).node).Attr("disabled"); disabled {
		return nil, false
	}
	return el, true
}

func (p *Page) Eval(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.Scripts = append(p.Scripts, script)
	if p.EvalFunc != nil {
		return p.EvalFunc(script, args)
	}
	return nil, nil
}

// Drag moves the node under from next to the node under to, the way a
// sortable list reorders siblings: dragging upward lands before the target,
// dragging downward lands after it.
func (p *Page) Drag(ctx context.Context, from, to browser.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Drags = append(p.Drags, [2]browser.Point{from, to})
	src := p.nodeAt(from)
	dst := p.nodeAt(to)
	if src == nil || dst == nil || src == dst || src.Parent != dst.Parent {
		return nil
	}
	parent := src.Parent
	down := siblingIndex(src) < siblingIndex(dst)
	parent.RemoveChild(src)
	if down {
		if dst.NextSibling != nil {
			parent.InsertBefore(src, dst.NextSibling)
		} else {
			parent.AppendChild(src)
		}
	} else {
		parent.InsertBefore(src, dst)
	}
	return nil
}

func (p *Page) click(n *html.Node) {
	p.clicked = append(p.clicked, n)
	for _, h := range p.hooks {
		if p.sel(n).Is(h.selector) {
			h.fn(p)
		}
	}
}

func (p *Page) sel(n *html.Node) *goquery.Selection {
	return p.doc.FindNodes(n)
}

// rect lays every element out as a full-width row in document order.
func (p *Page) rect(n *html.Node) (browser.Rect, bool) {
	idx := -1
	p.doc.Find("*").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.Get(0) == n {
			idx = i
			return false
		}
		return true
	})
	if idx < 0 {
		return browser.Rect{}, false
	}
	return browser.Rect{X: 0, Y: float64(idx) * RowHeight, Width: 400, Height: RowHeight}, true
}

func (p *Page) nodeAt(pt browser.Point) *html.Node {
	idx := int(pt.Y / RowHeight)
	all := p.doc.Find("*")
	if idx < 0 || idx >= all.Length() {
		return nil
	}
	return all.Get(idx)
}

func (p *Page) first(ctx context.Context, s *goquery.Selection) (browser.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.Length() == 0 {
		return nil, false, nil
	}
	return &element{page: p, node: s.Get(0)}, true, nil
}

func (p *Page) all(ctx context.Context, s *goquery.Selection) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, s.Length())
	for _, n := range s.Nodes {
		out = append(out, &element{page: p, node: n})
	}
	return out, nil
}

func siblingIndex(n *html.Node) int {
	i := 0
	for c := n.Parent.FirstChild; c != nil && c != n; c = c.NextSibling {
		i++
	}
	return i
}
