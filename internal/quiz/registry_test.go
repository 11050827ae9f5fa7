package quiz

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polzovatel/autoanswer/internal/browser/browsertest"
)

// Markup that makes each layout marker selector match.
var markers = map[string]string{
	selDiscussionView: `<div class="layout-container discussion-view"></div>`,
	selAudioWrapper:   `<div class="audio-material-wrapper"></div>`,
	selVideoWrapper:   `<div class="video-material-wrapper"></div>`,
	selArticleWrapper: `<div class="text-material-wrapper"></div>`,
	selScoopReply:     `<div class="comp-scoop-reply"></div>`,
	selScoopDropdown:  `<div class="comp-scoop-reply-dropdown-selection-overflow"></div>`,
	selChoice:         `<div class="question-common-abs-choice"></div>`,
	selIdeaBox:        `<div class="question-inputbox"></div>`,
	selCorrectionFull: `<div class="layout-reply-container full"></div>`,
	selVideoPoint:     `<div class="question-video-point-read"></div>`,
	selSortable:       `<div class="sortable-list-wrapper"></div>`,
}

func pageWith(t testing.TB, selectors ...string) *browsertest.Page {
	return browsertest.MustNew(t, layoutMarkup(selectors...))
}

func layoutMarkup(selectors ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="layout-container">`)
	for _, s := range selectors {
		b.WriteString(markers[s])
	}
	b.WriteString(`</div>`)
	return b.String()
}

func TestDefaultRegistryResolves(t *testing.T) {
	deps, _ := testDeps()
	reg := DefaultRegistry(deps)
	require.Len(t, reg.Rules(), 15)

	cases := []struct {
		name      string
		selectors []string
		want      Layout
	}{
		{"discussion", []string{selDiscussionView}, Discussion},
		{"audio blanks", []string{selAudioWrapper, selScoopReply}, AudioBlankFilling},
		{"audio dropdown is not blanks", []string{selAudioWrapper, selScoopReply, selScoopDropdown}, AudioSelection},
		{"audio choice", []string{selAudioWrapper, selChoice}, AudioChoice},
		{"video blanks", []string{selVideoWrapper, selScoopReply}, VideoBlankFilling},
		{"video choice", []string{selVideoWrapper, selChoice}, VideoChoice},
		{"article choice", []string{selArticleWrapper, selChoice}, ArticleChoice},
		{"idea audio", []string{selAudioWrapper, selIdeaBox}, IdeaWithMedia},
		{"idea video", []string{selVideoWrapper, selIdeaBox}, IdeaWithMedia},
		{"idea article", []string{selArticleWrapper, selIdeaBox}, IdeaWithArticle},
		{"word correction", []string{selCorrectionFull, selScoopReply}, WordCorrection},
		{"video watch", []string{selVideoPoint}, VideoWatch},
		{"audio drag", []string{selAudioWrapper, selSortable}, AudioDragSort},
		{"video drag", []string{selVideoWrapper, selSortable}, VideoDragSort},
		{"video dropdown", []string{selVideoWrapper, selScoopDropdown}, VideoSelection},
		{"discussion wins over choice", []string{selDiscussionView, selAudioWrapper, selChoice}, Discussion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := reg.Resolve(context.Background(), pageWith(t, tc.selectors...))
			require.NoError(t, err)
			assert.Equal(t, tc.want, h.Layout())
		})
	}
}

func TestRegistryNoMatch(t *testing.T) {
	deps, _ := testDeps()
	_, err := DefaultRegistry(deps).Resolve(context.Background(), pageWith(t, selAudioWrapper))
	assert.True(t, errors.Is(err, ErrNoHandler))
}

func TestRegistryForbiddenExcludes(t *testing.T) {
	deps, _ := testDeps()
	reg := NewRegistry()
	reg.Register(NewAudioChoice(deps)).To(selAudioWrapper).NotTo(selChoice)
	reg.Register(NewVideoWatch(deps)).To(selAudioWrapper)

	h, err := reg.Resolve(context.Background(), pageWith(t, selAudioWrapper))
	require.NoError(t, err)
	assert.Equal(t, AudioChoice, h.Layout())

	h, err = reg.Resolve(context.Background(), pageWith(t, selAudioWrapper, selChoice))
	require.NoError(t, err)
	assert.Equal(t, VideoWatch, h.Layout())
}

func TestRegistryFirstMatchProperty(t *testing.T) {
	deps, _ := testDeps()
	reg := DefaultRegistry(deps)
	all := make([]string, 0, len(markers))
	for s := range markers {
		all = append(all, s)
	}
	sort.Strings(all)

	rapid.Check(t, func(rt *rapid.T) {
		present := rapid.SliceOfDistinct(rapid.SampledFrom(all), rapid.ID[string]).Draw(rt, "present")
		page, err := browsertest.New(layoutMarkup(present...))
		if err != nil {
			rt.Fatal(err)
		}
		ctx := context.Background()

		first, err1 := reg.Resolve(ctx, page)
		second, err2 := reg.Resolve(ctx, page)
		if (err1 == nil) != (err2 == nil) {
			rt.Fatalf("resolve errors differ: %v vs %v", err1, err2)
		}
		if first != second {
			rt.Fatalf("resolve is not deterministic")
		}

		// Expected handler from the drawn markers alone, without touching the page.
		on := make(map[string]bool, len(present))
		for _, sel := range present {
			on[sel] = true
		}
		var want Handler
		for _, rule := range reg.Rules() {
			if allOn(on, rule.Required) && noneOn(on, rule.Forbidden) {
				want = rule.Handler
				break
			}
		}
		if want == nil {
			if !errors.Is(err1, ErrNoHandler) {
				rt.Fatalf("want ErrNoHandler, got %v", err1)
			}
			return
		}
		if err1 != nil {
			rt.Fatalf("want %v, got %v", want.Layout(), err1)
		}
		if first != want {
			rt.Fatalf("resolved %v, first matching rule is %v", first.Layout(), want.Layout())
		}
	})
}

func allOn(on map[string]bool, sels []string) bool {
	for _, s := range sels {
		if !on[s] {
			return false
		}
	}
	return true
}

func noneOn(on map[string]bool, sels []string) bool {
	for _, s := range sels {
		if on[s] {
			return false
		}
	}
	return true
}
