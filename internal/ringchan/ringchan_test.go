package ringchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDropsOldestWhenFull(t *testing.T) {
	rc := New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}
	require.Equal(t, 3, rc.Len())

	// Only the last three survive.
	for _, want := range []int{7, 8, 9} {
		v, ok := rc.TryReceive()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok := rc.TryReceive()
	assert.False(t, ok)
}

func TestTrySendFailsWhenFull(t *testing.T) {
	rc := New[string](1)
	assert.True(t, rc.TrySend("a"))
	assert.False(t, rc.TrySend("b"))

	v, ok := rc.TryReceive()
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestCloseDrainsViaC(t *testing.T) {
	rc := New[int](4)
	rc.Send(1)
	rc.Send(2)
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2}, got)
}

func TestZeroCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
