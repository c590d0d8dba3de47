package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dtroode/useradmin-console/internal/testutil"
)

func TestDebouncer_OnlyLastCallRuns(t *testing.T) {
	clk := testutil.NewClock(time.Unix(0, 0))
	d := New(clk)

	var got []string
	for _, v := range []string{"a", "al", "ali", "alic", "alice"} {
		v := v
		d.Schedule(func() { got = append(got, v) }, 300*time.Millisecond)
		clk.Advance(100 * time.Millisecond)
	}

	assert.Empty(t, got)
	assert.True(t, d.Pending())

	clk.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"alice"}, got)
	assert.False(t, d.Pending())
}

func TestDebouncer_SeparatedCallsBothRun(t *testing.T) {
	clk := testutil.NewClock(time.Unix(0, 0))
	d := New(clk)

	count := 0
	d.Schedule(func() { count++ }, 300*time.Millisecond)
	clk.Advance(301 * time.Millisecond)
	d.Schedule(func() { count++ }, 300*time.Millisecond)
	clk.Advance(301 * time.Millisecond)

	assert.Equal(t, 2, count)
}

func TestDebouncer_CancelPending(t *testing.T) {
	clk := testutil.NewClock(time.Unix(0, 0))
	d := New(clk)

	ran := false
	d.Schedule(func() { ran = true }, 300*time.Millisecond)
	d.CancelPending()
	clk.Advance(time.Second)

	assert.False(t, ran)
	assert.Equal(t, 0, clk.Pending())
}

func TestDebouncer_StopRejectsSchedules(t *testing.T) {
	clk := testutil.NewClock(time.Unix(0, 0))
	d := New(clk)

	ran := false
	d.Schedule(func() { ran = true }, 300*time.Millisecond)
	d.Stop()
	d.Schedule(func() { ran = true }, 300*time.Millisecond)
	clk.Advance(time.Second)

	assert.False(t, ran)
	assert.False(t, d.Pending())
}
