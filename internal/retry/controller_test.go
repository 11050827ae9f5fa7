package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/polzovatel/autoanswer/internal/browser"
	"github.com/polzovatel/autoanswer/internal/browser/browsertest"
	"github.com/polzovatel/autoanswer/internal/llm"
	"github.com/polzovatel/autoanswer/internal/quiz"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeHandler struct {
	graded     bool
	skip       bool
	noInfer    bool
	extractErr error
	applied    int
	feedbacks  [][]string
}

func (h *fakeHandler) Layout() quiz.Layout { return quiz.AudioChoice }
func (h *fakeHandler) Graded() bool        { return h.graded }

func (h *fakeHandler) Extract(context.Context, browser.Surface) (*quiz.Content, error) {
	if h.extractErr != nil {
		return nil, h.extractErr
	}
	return &quiz.Content{Skip: h.skip, SkipReason: "too quiet"}, nil
}

func (h *fakeHandler) BuildRequest(_ *quiz.Content, feedback []string) *llm.Prompt {
	h.feedbacks = append(h.feedbacks, append([]string(nil), feedback...))
	if h.noInfer {
		return nil
	}
	return &llm.Prompt{Instruction: "answer", Feedback: feedback}
}

func (h *fakeHandler) NewAnswer() quiz.Answer { return &quiz.BlanksAnswer{} }

func (h *fakeHandler) Apply(_ context.Context, _ browser.Surface, _ *quiz.Content, _ quiz.Answer) (quiz.Applied, error) {
	h.applied++
	return quiz.Applied{Actions: 1, Warnings: []string{fmt.Sprintf("warn %d", h.applied)}}, nil
}

// countingLLM answers "try N" on its Nth call.
type countingLLM struct {
	calls int
	err   error
}

func (l *countingLLM) Infer(_ context.Context, _ *llm.Prompt, out any) error {
	if l.err != nil {
		return l.err
	}
	l.calls++
	out.(*quiz.BlanksAnswer).Blanks = []string{fmt.Sprintf("try %d", l.calls)}
	return nil
}

type scriptedGrader struct {
	scores    []float64
	reads     int
	redos     int
	concluded int
	noRedo    bool
}

func (g *scriptedGrader) ReadScore(context.Context, browser.Surface) (float64, bool, error) {
	if g.reads >= len(g.scores) {
		return 0, false, nil
	}
	s := g.scores[g.reads]
	g.reads++
	return s, true, nil
}

func (g *scriptedGrader) Redo(context.Context, browser.Surface) (bool, error) {
	g.redos++
	return !g.noRedo, nil
}

func (g *scriptedGrader) Conclude(context.Context, browser.Surface) error {
	g.concluded++
	return nil
}

func run(t *testing.T, h *fakeHandler, inf Inferer, g *scriptedGrader) Result {
	t.Helper()
	c := NewController(DefaultConfig, inf, g, zerolog.Nop())
	return c.Run(context.Background(), browsertest.MustNew(t, "<div></div>"), h)
}

func TestRetryBudgetExhausted(t *testing.T) {
	h := &fakeHandler{graded: true}
	g := &scriptedGrader{scores: []float64{40, 45, 50}}

	res := run(t, h, &countingLLM{}, g)

	assert.Equal(t, Failed, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 50.0, res.Score)
	assert.True(t, res.Graded)
	assert.Equal(t, 2, g.redos)
	assert.Equal(t, 1, g.concluded)
	assert.NoError(t, res.Err)
	assert.Len(t, res.Warnings, 3)
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	h := &fakeHandler{graded: true}
	g := &scriptedGrader{scores: []float64{40, 75}}

	res := run(t, h, &countingLLM{}, g)

	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 75.0, res.Score)
	assert.Equal(t, 1, g.redos)
	assert.Zero(t, g.concluded)
}

func TestPassMarkIsInclusive(t *testing.T) {
	res := run(t, &fakeHandler{graded: true}, &countingLLM{}, &scriptedGrader{scores: []float64{60}})
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 1, res.Attempts)
}

func TestFeedbackAccumulatesInOrder(t *testing.T) {
	h := &fakeHandler{graded: true}
	res := run(t, h, &countingLLM{}, &scriptedGrader{scores: []float64{10, 20, 30}})

	want := []string{`["try 1"]`, `["try 2"]`}
	if diff := cmp.Diff(want, res.Feedback); diff != "" {
		t.Errorf("feedback mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, h.feedbacks, 3)
	assert.Empty(t, h.feedbacks[0])
	assert.Equal(t, want[:1], h.feedbacks[1])
	assert.Equal(t, want, h.feedbacks[2])
}

func TestUngradedHandlerSucceedsAtOnce(t *testing.T) {
	g := &scriptedGrader{scores: []float64{0}}
	res := run(t, &fakeHandler{}, &countingLLM{}, g)

	assert.Equal(t, Succeeded, res.State)
	assert.False(t, res.Graded)
	assert.Zero(t, g.reads)
}

func TestMissingScoreCountsAsUngraded(t *testing.T) {
	res := run(t, &fakeHandler{graded: true}, &countingLLM{}, &scriptedGrader{})
	assert.Equal(t, Succeeded, res.State)
	assert.False(t, res.Graded)
}

func TestSkippedExerciseNeverInfers(t *testing.T) {
	inf := &countingLLM{}
	h := &fakeHandler{skip: true}
	res := run(t, h, inf, &scriptedGrader{})

	assert.Equal(t, Skipped, res.State)
	assert.Equal(t, "too quiet", res.Reason)
	assert.Zero(t, inf.calls)
	assert.Zero(t, h.applied)
}

func TestNoInferenceLayout(t *testing.T) {
	inf := &countingLLM{}
	res := run(t, &fakeHandler{noInfer: true}, inf, &scriptedGrader{})
	assert.Equal(t, Succeeded, res.State)
	assert.Zero(t, inf.calls)
}

func TestRedoUnavailableFails(t *testing.T) {
	g := &scriptedGrader{scores: []float64{30}, noRedo: true}
	res := run(t, &fakeHandler{graded: true}, &countingLLM{}, g)

	assert.Equal(t, Failed, res.State)
	assert.Equal(t, "redo unavailable", res.Reason)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, res.Feedback, 1)
}

func TestErrorsEndInFailed(t *testing.T) {
	boom := errors.New("boom")

	res := run(t, &fakeHandler{extractErr: boom}, &countingLLM{}, &scriptedGrader{})
	assert.Equal(t, Failed, res.State)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "extract", res.Reason)

	h := &fakeHandler{graded: true}
	res = run(t, h, &countingLLM{err: boom}, &scriptedGrader{})
	assert.Equal(t, Failed, res.State)
	assert.ErrorIs(t, res.Err, boom)
	assert.Zero(t, h.applied)
}

func TestZeroRetries(t *testing.T) {
	g := &scriptedGrader{scores: []float64{10}}
	c := NewController(Config{MaxRetries: 0, PassScore: 60}, &countingLLM{}, g, zerolog.Nop())
	res := c.Run(context.Background(), browsertest.MustNew(t, "<div></div>"), &fakeHandler{graded: true})

	assert.Equal(t, Failed, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, g.redos)
}

func TestStateNames(t *testing.T) {
	for _, s := range []State{Attempting, Scoring, Succeeded, Retrying, Failed, Skipped} {
		assert.NotEqual(t, "unknown", s.String())
	}
	assert.True(t, Skipped.Terminal())
	assert.False(t, Retrying.Terminal())
}
