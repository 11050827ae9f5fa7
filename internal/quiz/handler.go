// Package quiz detects which exercise layout a course page shows and knows
// how to read, answer and submit each one.
package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/llm"
	"github.com/polzovatel/autoanswer/internal/media"
)

// ErrNoHandler is returned when no rule matches the current page.
var ErrNoHandler = errors.New("no handler for page layout")

type Layout int

const (
	Discussion Layout = iota + 1
	AudioBlankFilling
	AudioChoice
	VideoBlankFilling
	VideoChoice
	ArticleChoice
	IdeaWithMedia
	IdeaWithArticle
	WordCorrection
	VideoWatch
	AudioDragSort
	VideoDragSort
	AudioSelection
	VideoSelection
)

var layoutNames = map[Layout]string{
	Discussion:        "discussion",
	AudioBlankFilling: "audio_blank_filling",
	AudioChoice:       "audio_choice",
	VideoBlankFilling: "video_blank_filling",
	VideoChoice:       "video_choice",
	ArticleChoice:     "article_choice",
	IdeaWithMedia:     "idea_with_media",
	IdeaWithArticle:   "idea_with_article",
	WordCorrection:    "word_correction",
	VideoWatch:        "video_watch",
	AudioDragSort:     "audio_drag_sort",
	VideoDragSort:     "video_drag_sort",
	AudioSelection:    "audio_selection",
	VideoSelection:    "video_selection",
}

func (l Layout) String() string {
	if s, ok := layoutNames[l]; ok {
		return s
	}
	return "unknown"
}

// Handler reads, answers and submits one exercise layout.
//
// Extract must not change the page. BuildRequest returns nil for layouts that
// need no inference, in which case Apply receives a nil Answer. Apply mutates
// the page and triggers submission; it degrades instead of failing when the
// answer does not fit the page, recording each degradation as a warning.
type Handler interface {
	Layout() Layout
	Graded() bool
	Extract(ctx context.Context, s browser.Surface) (*Content, error)
	BuildRequest(c *Content, feedback []string) *llm.Prompt
	NewAnswer() Answer
	Apply(ctx context.Context, s browser.Surface, c *Content, a Answer) (Applied, error)
}

// Content is what Extract scraped. Each layout fills the fields it uses.
type Content struct {
	Material string
	Tips     []string

	Title string
	Body  string
	Peers []string

	Text   string
	Blanks int

	Singles   []ChoiceQuestion
	Multiples []ChoiceQuestion

	Questions  []string
	Items      []string
	Selections []SelectionQuestion
	Videos     int

	Skip       bool
	SkipReason string
}

type Option struct {
	Caption string `json:"caption"`
	Content string `json:"content"`
}

// ChoiceQuestion keeps its position among all choice blocks on the page so
// answers can be applied to the right block after partitioning.
type ChoiceQuestion struct {
	Index   int      `json:"-"`
	Title   string   `json:"title"`
	Options []Option `json:"options"`
}

type SelectionQuestion struct {
	Question string   `json:"question"`
	Options  []Option `json:"options"`
}

// Applied reports what Apply did.
type Applied struct {
	Actions  int
	Warnings []string
}

func (a *Applied) warn(log zerolog.Logger, msg string) {
	log.Warn().Msg(msg)
	a.Warnings = append(a.Warnings, msg)
}

// Transcriber is the slice of the media service handlers use.
type Transcriber interface {
	Transcribe(ctx context.Context, url string, kind media.Kind) (string, error)
}

// Timing holds the pauses and bounded waits handlers use.
type Timing struct {
	Submit     time.Duration
	PeerWait   time.Duration
	Dropdown   time.Duration
	DragStep   time.Duration
	VideoWatch time.Duration
}

// Deps are shared by every handler.
type Deps struct {
	Media  Transcriber
	Timing Timing
	Log    zerolog.Logger
}
