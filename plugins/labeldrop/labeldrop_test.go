package labeldrop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

func TestAnalyzeRejectsOutOfRangeLabel(t *testing.T) {
	d := New()
	err := d.Analyze(map[string]any{"label": buffer.MaxLabel + 1})
	assert.Error(t, err)
}

func TestProcessPacketDropsMatchingLabel(t *testing.T) {
	d := New()
	require.NoError(t, d.Analyze(map[string]any{"label": 3}))

	var pkt buffer.Packet
	var meta buffer.Metadata
	assert.Equal(t, plugin.StatusOK, d.ProcessPacket(&pkt, &meta))

	meta.SetLabel(3)
	assert.Equal(t, plugin.StatusDrop, d.ProcessPacket(&pkt, &meta))
	assert.EqualValues(t, 1, d.count)
}

func TestProcessPacketStuffsWhenConfigured(t *testing.T) {
	d := New()
	require.NoError(t, d.Analyze(map[string]any{"label": 3, "stuff": true}))

	var pkt buffer.Packet
	meta := buffer.Metadata{}
	meta.SetLabel(3)
	assert.Equal(t, plugin.StatusStuffNull, d.ProcessPacket(&pkt, &meta))
}

func TestResetContextClearsCount(t *testing.T) {
	d := New()
	d.count = 5
	require.NoError(t, d.ResetContext())
	assert.Zero(t, d.count)
}
