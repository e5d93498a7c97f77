package timing

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleDropsCallsDuringCooldown(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	th := NewThrottler(200*time.Millisecond, func(v int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, v)
	})

	require.True(t, th.Call(1))
	for i := 2; i <= 5; i++ {
		require.False(t, th.Call(i))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1}, seen)
}

func TestThrottleRunsAgainAfterCooldown(t *testing.T) {
	var count atomic.Int32
	cooldown := 30 * time.Millisecond
	throttled := ThrottleFunc(cooldown, func() { count.Add(1) })

	throttled()
	require.Equal(t, int32(1), count.Load())

	time.Sleep(cooldown + 30*time.Millisecond)
	throttled()
	require.Equal(t, int32(2), count.Load())
}

func TestThrottleRunsImmediatelyOnCallerGoroutine(t *testing.T) {
	ran := false
	throttled := Throttle(time.Minute, func(v string) {
		ran = v == "now"
	})

	throttled("now")
	require.True(t, ran)
}

func TestThrottleReentrantCallIsDropped(t *testing.T) {
	var count atomic.Int32
	var th *Throttler[int]
	th = NewThrottler(time.Minute, func(v int) {
		count.Add(1)
		if v == 0 {
			require.False(t, th.Call(1))
		}
	})

	require.True(t, th.Call(0))
	require.Equal(t, int32(1), count.Load())
}

func TestThrottlerReset(t *testing.T) {
	var count atomic.Int32
	th := NewThrottler(time.Minute, func(struct{}) { count.Add(1) })

	require.True(t, th.Ready())
	th.Call(struct{}{})
	require.False(t, th.Ready())

	th.Reset()
	require.True(t, th.Ready())
	require.True(t, th.Call(struct{}{}))
	require.Equal(t, int32(2), count.Load())
}
