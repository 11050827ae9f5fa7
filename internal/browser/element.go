package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// element wraps a locator pinned to one match (First or Nth).
type element struct {
	loc playwright.Locator
}

var _ Element = (*element)(nil)

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = e.loc.ScrollIntoViewIfNeeded()
	return wrap(e.loc.Click())
}

func (e *element) Fill(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(e.loc.Fill(text))
}

func (e *element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(e.loc.Clear())
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.loc.InnerText()
	if err != nil {
		return "", wrap(err)
	}
	return strings.TrimSpace(s), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.loc.GetAttribute(name)
	return s, wrap(err)
}

func (e *element) HasClass(ctx context.Context, class string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.loc.Evaluate("(el, c) => el.classList.contains(c)", class)
	if err != nil {
		return false, wrap(err)
	}
	b, _ := v.(bool)
	return b, nil
}

func (e *element) OuterHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.loc.Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", wrap(err)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("outerHTML: unexpected %T", v)
	}
	return s, nil
}

func (e *element) Rect(ctx context.Context) (Rect, error) {
	if err := ctx.Err(); err != nil {
		return Rect{}, err
	}
	box, err := e.loc.BoundingBox()
	if err != nil {
		return Rect{}, wrap(err)
	}
	if box == nil {
		return Rect{}, fmt.Errorf("element is not rendered")
	}
	return Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *element) Find(ctx context.Context, selector string) (Element, bool, error) {
	return first(ctx, e.loc.Locator(selector))
}

func (e *element) FindAll(ctx context.Context, selector string) ([]Element, error) {
	return all(ctx, e.loc.Locator(selector))
}

func (e *element) Parent(ctx context.Context) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &element{loc: e.loc.Locator("xpath=..")}, nil
}
