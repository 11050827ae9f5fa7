package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitBudget(t *testing.T) {
	got, ok := waitBudget(context.Background(), 0)
	assert.True(t, ok)
	assert.Equal(t, defaultActionTime, got)

	got, ok = waitBudget(context.Background(), 3*time.Second)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, got)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	got, ok = waitBudget(ctx, 2*time.Second)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, got)
}

func TestWaitBudgetClipsToDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	got, ok := waitBudget(ctx, 5*time.Second)
	assert.True(t, ok)
	assert.LessOrEqual(t, got, 500*time.Millisecond)
	assert.GreaterOrEqual(t, got, time.Millisecond)
}

func TestWaitBudgetNeverZero(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(200*time.Microsecond))
	defer cancel()
	_, ok := waitBudget(ctx, 5*time.Second)
	assert.False(t, ok)

	done, stop := context.WithCancel(context.Background())
	stop()
	_, ok = waitBudget(done, 5*time.Second)
	assert.False(t, ok)
}

func TestRectCenter(t *testing.T) {
	assert.Equal(t, Point{X: 15, Y: 30}, Rect{X: 10, Y: 20, Width: 10, Height: 20}.Center())
}
