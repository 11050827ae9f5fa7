// Package snapshot summarises an exercise page for diagnostics, mostly when
// no handler recognises its layout.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/polzovatel/autoanswer/internal/browser"
)

const layoutSelector = "div.layout-container"

// Element describes minimal info about an interactive node.
type Element struct {
	Role string `json:"role"`
	Text string `json:"text"`
	Attr string `json:"attr"`
}

// Marker is a CSS class seen in the layout and how often it occurs.
type Marker struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// Summary is a compact view of the current exercise.
type Summary struct {
	URL      string
	Visible  string
	Markers  []Marker
	Elements []Element
}

// Collect reads the layout container, or the whole body when the page has
// none.
func Collect(ctx context.Context, s browser.Surface, url string) (Summary, error) {
	sum := Summary{URL: url}
	el, ok, err := s.Find(ctx, layoutSelector)
	if err != nil {
		return sum, err
	}
	if !ok {
		if el, ok, err = s.Find(ctx, "body"); err != nil || !ok {
			return sum, err
		}
	}
	raw, err := el.OuterHTML(ctx)
	if err != nil {
		return sum, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return sum, fmt.Errorf("parse layout: %w", err)
	}

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > 600 {
		text = text[:600]
	}
	sum.Visible = text
	sum.Markers = rankMarkers(doc, 40)
	sum.Elements = collectInteractive(doc, 40)
	return sum, nil
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nTEXT: %s\nMARKERS:", s.URL, s.Visible)
	for _, m := range s.Markers {
		fmt.Fprintf(&b, " %s(%d)", m.Class, m.Count)
	}
	b.WriteString("\nELEMENTS:\n")
	for i, el := range s.Elements {
		fmt.Fprintf(&b, "%d) role=%s text=%s attr=%s\n", i+1, el.Role, el.Text, el.Attr)
	}
	return b.String()
}

// Classes returns the marker class names, most relevant first.
func (s Summary) Classes() []string {
	out := make([]string, 0, len(s.Markers))
	for _, m := range s.Markers {
		out = append(out, m.Class)
	}
	return out
}

func collectInteractive(doc *goquery.Document, limit int) []Element {
	var elems []Element
	doc.Find("a,button,input,select,textarea,video,audio,[role]").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		role, ok := n.Attr("role")
		if !ok {
			role = goquery.NodeName(n)
		}
		var attrs []string
		for _, a := range []string{"class", "type", "placeholder", "name"} {
			if v, ok := n.Attr(a); ok && v != "" {
				attrs = append(attrs, a+":"+v)
			}
		}
		text := strings.Join(strings.Fields(n.Text()), " ")
		if len(text) > 80 {
			text = text[:80]
		}
		elems = append(elems, Element{Role: role, Text: text, Attr: strings.Join(attrs, "|")})
		return len(elems) < limit
	})
	return elems
}

// rankMarkers counts classes and orders them by how likely they identify an
// exercise widget.
func rankMarkers(doc *goquery.Document, limit int) []Marker {
	counts := map[string]int{}
	doc.Find("[class]").Each(func(_ int, n *goquery.Selection) {
		cls, _ := n.Attr("class")
		for _, c := range strings.Fields(cls) {
			counts[c]++
		}
	})
	markers := make([]Marker, 0, len(counts))
	for c, n := range counts {
		if scoreClass(c) > 0 {
			markers = append(markers, Marker{Class: c, Count: n})
		}
	}
	sort.SliceStable(markers, func(i, j int) bool {
		si, sj := scoreClass(markers[i].Class), scoreClass(markers[j].Class)
		if si != sj {
			return si > sj
		}
		return markers[i].Class < markers[j].Class
	})
	if len(markers) > limit {
		markers = markers[:limit]
	}
	return markers
}

func scoreClass(c string) int {
	lc := strings.ToLower(c)
	score := 1
	for _, hint := range []string{"question", "material", "reply", "scoop", "choice", "sortable", "discussion", "inputbox", "video", "audio"} {
		if strings.Contains(lc, hint) {
			score += 5
		}
	}
	if strings.Contains(lc, "wrapper") || strings.Contains(lc, "container") {
		score += 2
	}
	// Framework styling classes say nothing about the layout.
	if strings.HasPrefix(lc, "ant-") || strings.HasPrefix(lc, "anticon") {
		score -= 3
	}
	return score
}

// WithDeadline shortens context to avoid long snapshot waits.
func WithDeadline(ctx context.Context, dur time.Duration) (context.Context, context.CancelFunc) {
	if dur <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, dur)
}
