package quiz

import (
	"encoding/json"

	"github.com/polzovatel/autoanswer/internal/llm"
)

// Answer is a decoded model reply. Feedback is the form kept after a low
// score so the next attempt can avoid it.
type Answer interface {
	Feedback() string
}

func feedbackJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

type DiscussionAnswer struct {
	Answer string `json:"answer"`
}

func (a *DiscussionAnswer) Feedback() string { return a.Answer }

type SingleChoice struct {
	Caption string `json:"caption"`
}

type MultipleChoice struct {
	Captions []string `json:"captions"`
}

type ChoiceAnswer struct {
	SingleChoices   []SingleChoice   `json:"single_choices"`
	MultipleChoices []MultipleChoice `json:"multiple_choices"`
}

func (a *ChoiceAnswer) Feedback() string { return feedbackJSON(a) }

type BlanksAnswer struct {
	Blanks []string `json:"blanks"`
}

func (a *BlanksAnswer) Feedback() string { return feedbackJSON(a.Blanks) }

type IdeaAnswer struct {
	Answers []string `json:"answers"`
}

func (a *IdeaAnswer) Feedback() string { return feedbackJSON(a.Answers) }

// OrderAnswer lists, for each final position, the original index of the item
// that belongs there.
type OrderAnswer struct {
	Orders []int `json:"orders"`
}

func (a *OrderAnswer) Feedback() string { return feedbackJSON(a.Orders) }

type SelectionAnswer struct {
	Captions []int `json:"captions"`
}

func (a *SelectionAnswer) Feedback() string { return feedbackJSON(a.Captions) }

var (
	discussionSchema = &llm.Schema{
		Name:        "discussion_answer",
		Description: "A short discussion post.",
		Root: llm.Object("",
			llm.Prop("answer", llm.String("the post, 15 to 30 words")),
		),
	}
	choiceSchema = &llm.Schema{
		Name:        "choice_answer",
		Description: "Chosen option captions, in question order.",
		Root: llm.Object("",
			llm.Prop("single_choices", llm.Array("one entry per single-answer question, empty if none",
				llm.Object("", llm.Prop("caption", llm.String("caption of the chosen option, e.g. A"))))),
			llm.Prop("multiple_choices", llm.Array("one entry per multiple-answer question, empty if none",
				llm.Object("", llm.Prop("captions", llm.Array("captions of every correct option", llm.String("")))))),
		),
	}
	blanksSchema = &llm.Schema{
		Name:        "blanks_answer",
		Description: "Words for the numbered blanks, in order.",
		Root: llm.Object("",
			llm.Prop("blanks", llm.Array("one word or phrase per blank", llm.String(""))),
		),
	}
	ideaSchema = &llm.Schema{
		Name:        "idea_answer",
		Description: "Answers to open questions, in question order.",
		Root: llm.Object("",
			llm.Prop("answers", llm.Array("one answer per question", llm.String(""))),
		),
	}
	orderSchema = &llm.Schema{
		Name:        "order_answer",
		Description: "Item indexes in their correct order.",
		Root: llm.Object("",
			llm.Prop("orders", llm.Array("0-based item index for each position, first position first", llm.Integer(""))),
		),
	}
	selectionSchema = &llm.Schema{
		Name:        "selection_answer",
		Description: "Chosen option numbers, in question order.",
		Root: llm.Object("",
			llm.Prop("captions", llm.Array("0-based option number for each question", llm.Integer(""))),
		),
	}
)
