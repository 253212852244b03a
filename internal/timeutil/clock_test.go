package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestMockClockNowAndSince(t *testing.T) {
	t.Parallel()

	c := NewMockClock(t0)
	assert.Equal(t, t0, c.Now())

	c.Advance(time.Second)
	assert.Equal(t, t0.Add(time.Second), c.Now())
	assert.Equal(t, time.Second, c.Since(t0))
}

func TestMockTimerFiresOnAdvance(t *testing.T) {
	t.Parallel()

	c := NewMockClock(t0)
	timer := c.NewTimer(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case fired := <-timer.C():
		assert.Equal(t, t0.Add(100*time.Millisecond), fired)
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestMockTimerStop(t *testing.T) {
	t.Parallel()

	c := NewMockClock(t0)
	timer := c.NewTimer(time.Second)
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestMockTickerTicksRepeatedly(t *testing.T) {
	t.Parallel()

	c := NewMockClock(t0)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 1; i <= 3; i++ {
		c.Advance(time.Second)
		select {
		case now := <-ticker.C():
			assert.Equal(t, t0.Add(time.Duration(i)*time.Second), now)
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}
}

func TestMockTickerStopSuppressesTicks(t *testing.T) {
	t.Parallel()

	c := NewMockClock(t0)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker ticked")
	default:
	}
}

func TestMockTickerTrigger(t *testing.T) {
	t.Parallel()

	c := NewMockClock(t0)
	ticker := c.NewTicker(time.Hour)
	defer ticker.Stop()

	mock, ok := ticker.(*MockTicker)
	require.True(t, ok)
	mock.Trigger(t0.Add(time.Minute))

	select {
	case now := <-ticker.C():
		assert.Equal(t, t0.Add(time.Minute), now)
	default:
		t.Fatal("trigger did not deliver")
	}
}

func TestRealClockTicker(t *testing.T) {
	t.Parallel()

	ticker := RealClock{}.NewTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not tick")
	}
}
