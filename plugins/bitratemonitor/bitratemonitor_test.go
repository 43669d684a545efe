package bitratemonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

func TestAnalyzeRejectsInvertedBand(t *testing.T) {
	m := New()
	err := m.Analyze(map[string]any{"min_bitrate": 1000, "max_bitrate": 500})
	assert.Error(t, err)
}

func TestAnalyzeDefaultsWindow(t *testing.T) {
	m := New()
	require.NoError(t, m.Analyze(map[string]any{"min_bitrate": 1000}))
	assert.Equal(t, 5, m.cfg.Window)
}

// driveBucket feeds n packets into the current bucket and rolls the
// window forward by advancing the synthetic clock one second, bypassing
// wall-clock timing so the hysteresis machine is deterministic.
func driveBucket(m *Monitor, now time.Time, n int) time.Time {
	m.mu.Lock()
	m.cur.packets += uint64(n)
	m.mu.Unlock()
	now = now.Add(time.Second)
	m.tick(now)
	return now
}

func TestBandTransitionsSetPendingGoLabel(t *testing.T) {
	m := New()
	require.NoError(t, m.Analyze(map[string]any{
		"min_bitrate": uint64(1000), "window": 1,
	}))
	require.NoError(t, m.Start())

	now := time.Now()
	m.mu.Lock()
	m.bucketStart = now
	m.mu.Unlock()

	// Zero packets in a one-second bucket -> 0 b/s, below min_bitrate.
	now = driveBucket(m, now, 0)
	require.Equal(t, stateLower, state(m.st.Load()))
	assert.Equal(t, m.cfg.GoBelowLabel, m.pendingGoLabel)

	// Consume the pending label via ProcessPacket, as the ring would.
	var pkt buffer.Packet
	meta := buffer.Metadata{}
	require.Equal(t, plugin.StatusOK, m.ProcessPacket(&pkt, &meta))
	assert.True(t, meta.HasLabel(m.cfg.GoBelowLabel), "expected go_below label on first packet after transition")
	assert.True(t, meta.HasLabel(m.cfg.BelowLabel), "expected below label while in lower state")
	assert.Equal(t, -1, m.pendingGoLabel)

	// A second packet in the same lower state gets BelowLabel but not
	// GoBelowLabel again.
	var meta2 buffer.Metadata
	m.ProcessPacket(&pkt, &meta2)
	assert.False(t, meta2.HasLabel(m.cfg.GoBelowLabel), "go_below label should only apply to the first packet after a transition")
	assert.True(t, meta2.HasLabel(m.cfg.BelowLabel), "below label should still apply while in lower state")

	// Enough packets to clear the band entirely.
	now = driveBucket(m, now, 10000)
	require.Equal(t, stateInRange, state(m.st.Load()))
	assert.Equal(t, m.cfg.GoNormalLabel, m.pendingGoLabel)
}

func TestHandlePacketTimeoutTicksAndKeepsWaiting(t *testing.T) {
	m := New()
	require.NoError(t, m.Analyze(map[string]any{"min_bitrate": uint64(0)}))
	require.NoError(t, m.Start())
	assert.True(t, m.HandlePacketTimeout())
}

func TestPIDFilterSkipsUnrelatedPackets(t *testing.T) {
	m := New()
	require.NoError(t, m.Analyze(map[string]any{"min_bitrate": uint64(0), "pid": uint16(100), "has_pid": true}))
	require.NoError(t, m.Start())

	var pkt buffer.Packet
	pkt.SetPID(200)
	var meta buffer.Metadata
	assert.Equal(t, plugin.StatusOK, m.ProcessPacket(&pkt, &meta))
	assert.Zero(t, m.cur.packets, "packet for a different PID should not be counted")
}
