package browsertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/polzovatel/autoanswer/internal/browser"
)

type element struct {
	page *Page
	node *html.Node
}

func (e *element) s() *goquery.Selection { return e.page.sel(e.node) }

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.click(e.node)
	return nil
}

// Fill sets the value attribute of inputs and the text of anything else.
func (e *element) Fill(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := e.s()
	if goquery.NodeName(s) == "input" {
		s.SetAttr("value", text)
		return nil
	}
	s.SetText(text)
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	return e.Fill(ctx, "")
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(e.s().Text()), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, _ := e.s().Attr(name)
	return v, nil
}

func (e *element) HasClass(ctx context.Context, class string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.s().HasClass(class), nil
}

func (e *element) OuterHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return goquery.OuterHtml(e.s())
}

func (e *element) Rect(ctx context.Context) (browser.Rect, error) {
	if err := ctx.Err(); err != nil {
		return browser.Rect{}, err
	}
	r, ok := e.page.rect(e.node)
	if !ok {
		return browser.Rect{}, fmt.Errorf("element is detached")
	}
	return r, nil
}

func (e *element) Find(ctx context.Context, selector string) (browser.Element, bool, error) {
	return e.page.first(ctx, e.s().Find(selector))
}

func (e *element) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return e.page.all(ctx, e.s().Find(selector))
}

func (e *element) Parent(ctx context.Context) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.node.Parent == nil {
		return nil, fmt.Errorf("element has no parent")
	}
	return &element{page: e.page, node: e.node.Parent}, nil
}
