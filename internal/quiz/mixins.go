package quiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/media"
)

// material produces the text a question is about: a transcript or an
// article.
type material func(ctx context.Context, s browser.Surface) (string, error)

func audioMaterial(m Transcriber) material {
	return func(ctx context.Context, s browser.Surface) (string, error) {
		return transcribeSrc(ctx, s, m, selAudio, media.Audio)
	}
}

func videoMaterial(m Transcriber) material {
	return func(ctx context.Context, s browser.Surface) (string, error) {
		return transcribeSrc(ctx, s, m, selVideo, media.Video)
	}
}

// mediaMaterial prefers the video when a page carries both wrappers.
func mediaMaterial(m Transcriber) material {
	return func(ctx context.Context, s browser.Surface) (string, error) {
		hasVideo, err := s.Exists(ctx, selVideoWrapper)
		if err != nil {
			return "", err
		}
		if hasVideo {
			return transcribeSrc(ctx, s, m, selVideo, media.Video)
		}
		return transcribeSrc(ctx, s, m, selAudio, media.Audio)
	}
}

func articleMaterial(ctx context.Context, s browser.Surface) (string, error) {
	doc, ok, err := parseFirst(ctx, s, selArticleWrapper)
	if err != nil || !ok {
		return "", err
	}
	return pureText(doc.Selection), nil
}

func transcribeSrc(ctx context.Context, s browser.Surface, m Transcriber, selector string, kind media.Kind) (string, error) {
	el, ok, err := s.Find(ctx, selector)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s element missing: %w", kind, media.ErrNoAudio)
	}
	src, err := el.Attr(ctx, "src")
	if err != nil {
		return "", err
	}
	return m.Transcribe(ctx, src, kind)
}

// extractTips reads the vocabulary side panel as "title: word explanation ...".
func extractTips(ctx context.Context, s browser.Surface) ([]string, error) {
	doc, ok, err := parseFirst(ctx, s, selTips)
	if err != nil || !ok {
		return nil, err
	}
	var tips []string
	doc.Find(selTipBranch).Each(func(_ int, branch *goquery.Selection) {
		title := strings.TrimSpace(branch.Find(selTipTitle).First().Text())
		var words []string
		branch.Find(selTipItem).Each(func(_ int, item *goquery.Selection) {
			name := strings.TrimSpace(item.Find(selTipName).First().Text())
			expl := strings.TrimSpace(item.Find(selTipExplain).First().Text())
			words = append(words, strings.TrimSpace(name+" "+expl))
		})
		tips = append(tips, fmt.Sprintf("%s: %s", title, strings.Join(words, " ")))
	})
	return tips, nil
}

// submit presses the course page's submit button when it becomes clickable
// within wait. A missing button is not an error.
func submit(ctx context.Context, s browser.Surface, wait time.Duration, log zerolog.Logger) error {
	btn, ok := s.WaitClickable(ctx, SelSubmit, wait)
	if !ok {
		log.Info().Msg("submit button not clickable, continuing")
		return nil
	}
	return btn.Click(ctx)
}

// fillBlanks types answers into the scoop inputs in document order. Surplus
// answers are dropped and inputs without an answer are left untouched.
func fillBlanks(ctx context.Context, s browser.Surface, answers []string, log zerolog.Logger) (Applied, error) {
	var res Applied
	inputs, err := s.FindAll(ctx, selScoopInput)
	if err != nil {
		return res, err
	}
	for i, ans := range answers {
		if i >= len(inputs) {
			res.warn(log, fmt.Sprintf("%d answers for %d blanks, surplus dropped", len(answers), len(inputs)))
			break
		}
		if err := inputs[i].Clear(ctx); err != nil {
			return res, err
		}
		if err := inputs[i].Fill(ctx, ans); err != nil {
			return res, err
		}
		log.Info().Int("blank", i+1).Str("answer", ans).Msg("blank filled")
		res.Actions++
	}
	if len(answers) < len(inputs) {
		res.warn(log, fmt.Sprintf("%d answers for %d blanks, remaining left empty", len(answers), len(inputs)))
	}
	return res, nil
}

// parseFirst loads the first match of selector into a goquery document.
func parseFirst(ctx context.Context, s browser.Surface, selector string) (*goquery.Document, bool, error) {
	el, ok, err := s.Find(ctx, selector)
	if err != nil || !ok {
		return nil, false, err
	}
	doc, err := parseElement(ctx, el)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func parseElement(ctx context.Context, el browser.Element) (*goquery.Document, error) {
	raw, err := el.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return doc, nil
}

// pureText joins the non-blank text nodes under sel with newlines.
func pureText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// directText concatenates only the immediate text children of sel.
func directText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizeCaption(s string) string {
	return strings.ToUpper(strings.TrimRight(strings.TrimSpace(s), ".、)"))
}
