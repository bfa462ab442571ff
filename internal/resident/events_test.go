package resident

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistory_RingKeepsNewest(t *testing.T) {
	h := NewHistory(3)
	require.Empty(t, h.Events())
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		h.Publish(Event{Name: n})
	}
	require.Equal(t, []string{"c", "d", "e"}, h.Names())
	for _, e := range h.Events() {
		require.False(t, e.Time.IsZero())
	}
}

func TestHistory_UsesManagerClock(t *testing.T) {
	h := NewHistory(0)
	clk := newFakeClock()
	m := newTestManager(t, Config{Publisher: h, Now: clk.Now})
	m.emit(EventRelease, nil)
	evts := h.Events()
	require.Len(t, evts, 1)
	require.Equal(t, int64(1_700_000_000), evts[0].Time.Unix())
	require.NotNil(t, evts[0].Fields)
}
