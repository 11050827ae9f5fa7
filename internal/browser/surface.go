package browser

import (
	"context"
	"time"
)

// Surface is the set of page capabilities handlers are allowed to use.
// Probes never wait: a selector that resolves to nothing is a normal false,
// not an error. Waiting variants take an explicit bound and report a timeout
// as (nil, false).
type Surface interface {
	Exists(ctx context.Context, selector string) (bool, error)
	Find(ctx context.Context, selector string) (Element, bool, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, bool)
	WaitAll(ctx context.Context, selector string, timeout time.Duration) ([]Element, bool)
	WaitClickable(ctx context.Context, selector string, timeout time.Duration) (Element, bool)
	Eval(ctx context.Context, script string, args ...any) (any, error)
	Drag(ctx context.Context, from, to Point) error
}

// Element is a handle to one node of the page.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, error)
	HasClass(ctx context.Context, class string) (bool, error)
	OuterHTML(ctx context.Context) (string, error)
	Rect(ctx context.Context) (Rect, error)
	Find(ctx context.Context, selector string) (Element, bool, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	Parent(ctx context.Context) (Element, error)
}

type Point struct {
	X, Y float64
}

type Rect struct {
	X, Y, Width, Height float64
}

// Center of the box, the point a drag gesture grabs.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Pause sleeps for d unless ctx ends first.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
