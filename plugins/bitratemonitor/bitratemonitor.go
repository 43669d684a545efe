// Package bitratemonitor implements the reference processor plugin from
// pipeline-design.md §4.6: a sliding one-second-bucket bitrate estimator with a
// hysteresis alarm state machine, label side-effects, and an optional
// alarm command invocation.
package bitratemonitor

import (
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/internal/metrics"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// bitsPerPacket is the nominal number of bits a TS packet contributes to
// a line-rate bitrate calculation (188 bytes * 8 bits, TSDuck's constant).
const bitsPerPacket = 188 * 8

// state is the hysteresis band a monitor currently occupies.
type state int

const (
	stateInRange state = iota
	stateLower
	stateGreater
)

func (s state) String() string {
	switch s {
	case stateLower:
		return "lower"
	case stateGreater:
		return "greater"
	default:
		return "normal"
	}
}

// Labels a monitor applies to packets, configurable via Config.
const (
	defaultGoBelowLabel = 1
	defaultBelowLabel   = 2
)

// Config is the plugin's decoded option set (pipeline-design.md §4.4 Analyze).
type Config struct {
	// MinBitrate/MaxBitrate define the allowed [min, max] band in b/s.
	// Zero MaxBitrate means no upper bound.
	MinBitrate uint64 `mapstructure:"min_bitrate"`
	MaxBitrate uint64 `mapstructure:"max_bitrate"`

	// Window is the number of one-second buckets averaged per measurement.
	Window int `mapstructure:"window"`

	// AlarmCommand, if set, is invoked on every band-crossing transition.
	AlarmCommand string `mapstructure:"alarm_command"`

	// ReportInterval, if positive, requests a periodic informational
	// report independent of band crossings.
	ReportInterval time.Duration `mapstructure:"report_interval"`

	// PID restricts measurement to one PID when HasPID is set; otherwise
	// the whole stream is measured.
	PID     uint16 `mapstructure:"pid"`
	HasPID  bool   `mapstructure:"has_pid"`
	TSID    string `mapstructure:"ts_id"`

	// GoBelowLabel/GoNormalLabel/GoAboveLabel are applied to exactly the
	// first packet processed after entering the corresponding state.
	// BelowLabel is applied to every packet while the lower band holds.
	GoBelowLabel  int `mapstructure:"go_below_label"`
	GoNormalLabel int `mapstructure:"go_normal_label"`
	GoAboveLabel  int `mapstructure:"go_above_label"`
	BelowLabel    int `mapstructure:"below_label"`
}

type bucket struct {
	duration  time.Duration
	packets   uint64
	nonNull   uint64
}

// Monitor is the bitrate monitor processor plugin. It maintains a
// sliding window of one-second buckets, derives a bitrate on each second
// boundary (measured with a monotonic clock), and applies labels/alarms
// as the estimate crosses the configured band.
type Monitor struct {
	cfg    Config
	report plugin.ReportSink

	runID     string
	stageName string

	mu          sync.Mutex
	buckets     []bucket
	bucketStart time.Time
	cur         bucket

	lastAlarm time.Time
	lastInfo  time.Time

	// pendingGoLabel is the label to stamp onto the next packet processed
	// after a state transition, or -1 if none is pending.
	pendingGoLabel int

	st         atomic.Int32
	bitrate    atomic.Uint64
	confidence atomic.Int32

	totalPackets uint64
	totalNonNull uint64
	totalBits    uint64
}

// New constructs an unconfigured monitor; Analyze/Start complete setup.
func New() *Monitor {
	return &Monitor{}
}

func (m *Monitor) Kind() plugin.Kind { return plugin.KindProcessor }

// SetStageContext implements plugin.StageAware, giving the monitor its
// run/stage identity for labeling the alarm counter.
func (m *Monitor) SetStageContext(runID, stageName string) {
	m.runID = runID
	m.stageName = stageName
}

// ResetContext clears accumulated bucket/alarm state, as required before
// a (re)start.
func (m *Monitor) ResetContext() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = nil
	m.cur = bucket{}
	m.bucketStart = time.Time{}
	m.lastAlarm = time.Time{}
	m.lastInfo = time.Time{}
	m.pendingGoLabel = -1
	m.st.Store(int32(stateInRange))
	m.bitrate.Store(0)
	m.confidence.Store(int32(buffer.ConfidenceUnknown))
	m.totalPackets = 0
	m.totalNonNull = 0
	m.totalBits = 0
	return nil
}

// Analyze decodes the plugin's options and validates the configured band.
func (m *Monitor) Analyze(options map[string]any) error {
	cfg := Config{
		Window:        5,
		GoBelowLabel:  defaultGoBelowLabel,
		BelowLabel:    defaultBelowLabel,
		GoNormalLabel: defaultGoBelowLabel + 1,
		GoAboveLabel:  defaultGoBelowLabel + 2,
	}
	if err := plugin.Decode(options, &cfg); err != nil {
		return fmt.Errorf("bitratemonitor: %w", err)
	}
	if cfg.MaxBitrate > 0 && cfg.MinBitrate > cfg.MaxBitrate {
		return fmt.Errorf("bitratemonitor: min_bitrate %d exceeds max_bitrate %d", cfg.MinBitrate, cfg.MaxBitrate)
	}
	if cfg.Window <= 0 {
		cfg.Window = 5
	}
	m.cfg = cfg
	return nil
}

func (m *Monitor) Start() error {
	m.mu.Lock()
	m.bucketStart = time.Now()
	m.pendingGoLabel = -1
	m.mu.Unlock()
	return nil
}

// Stop emits a final summary of bitrate statistics, per pipeline-design.md §4.6.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	packets, nonNull, bits := m.totalPackets, m.totalNonNull, m.totalBits
	m.mu.Unlock()
	if m.report != nil {
		m.report.Infof("bitratemonitor: final summary: %d packets (%d non-null), %d bits observed",
			packets, nonNull, bits)
	}
	return nil
}

func (m *Monitor) HandlePacketTimeout() bool {
	// Idle upstream: still tick the windowing logic so a stalled feed is
	// reflected as a falling bitrate instead of a frozen last reading.
	m.tick(time.Now())
	return true
}

func (m *Monitor) IsRealTime() bool { return false }

func (m *Monitor) RedirectReport(sink plugin.ReportSink) plugin.ReportSink {
	prev := m.report
	m.report = sink
	return prev
}

// Bitrate implements plugin.BitrateReporter, overriding the bitrate this
// stage propagates downstream with its own measurement.
func (m *Monitor) Bitrate() (uint64, buffer.Confidence, bool) {
	return m.bitrate.Load(), buffer.Confidence(m.confidence.Load()), true
}

// ProcessPacket counts the packet into the current bucket, applies
// "while in state" labels, and rolls the bucket window forward on second
// boundaries.
func (m *Monitor) ProcessPacket(pkt *buffer.Packet, meta *buffer.Metadata) plugin.Status {
	if m.cfg.HasPID && pkt.PID() != m.cfg.PID {
		return plugin.StatusOK
	}

	now := time.Now()
	m.mu.Lock()
	m.cur.packets++
	if !pkt.IsNull() {
		m.cur.nonNull++
	}
	m.tickLocked(now)
	st := state(m.st.Load())
	goLabel := m.pendingGoLabel
	m.pendingGoLabel = -1
	m.mu.Unlock()

	if goLabel >= 0 {
		meta.SetLabel(goLabel)
	}
	if st == stateLower {
		meta.SetLabel(m.cfg.BelowLabel)
	}
	return plugin.StatusOK
}

func (m *Monitor) tick(now time.Time) {
	m.mu.Lock()
	m.tickLocked(now)
	m.mu.Unlock()
}

// tickLocked rolls the bucket window forward past any elapsed second
// boundaries and recomputes the bitrate estimate. Callers must hold m.mu.
func (m *Monitor) tickLocked(now time.Time) {
	if m.bucketStart.IsZero() {
		m.bucketStart = now
		return
	}
	elapsed := now.Sub(m.bucketStart)
	if elapsed < time.Second {
		return
	}
	m.cur.duration = elapsed
	m.buckets = append(m.buckets, m.cur)
	if len(m.buckets) > m.cfg.Window {
		m.buckets = m.buckets[len(m.buckets)-m.cfg.Window:]
	}
	m.totalPackets += m.cur.packets
	m.totalNonNull += m.cur.nonNull
	m.totalBits += m.cur.packets * bitsPerPacket
	m.cur = bucket{}
	m.bucketStart = now

	var totalDur time.Duration
	var totalPkts uint64
	for _, b := range m.buckets {
		totalDur += b.duration
		totalPkts += b.packets
	}
	if totalDur <= 0 {
		m.bitrate.Store(0)
		m.confidence.Store(int32(buffer.ConfidenceUnknown))
		return
	}
	rate := uint64(float64(totalPkts*bitsPerPacket) / totalDur.Seconds())
	m.bitrate.Store(rate)
	if len(m.buckets) >= m.cfg.Window {
		m.confidence.Store(int32(buffer.ConfidenceHigh))
	} else {
		m.confidence.Store(int32(buffer.ConfidenceLow))
	}

	m.evaluateBand(rate, now)
	if m.cfg.ReportInterval > 0 && now.Sub(m.lastInfo) >= m.cfg.ReportInterval {
		m.lastInfo = now
		if m.report != nil {
			m.report.Infof("bitratemonitor: current bitrate %d b/s", rate)
		}
	}
}

// evaluateBand transitions the hysteresis state machine and raises
// alarms exactly on transitions, per pipeline-design.md §4.6/§8 scenario 6.
func (m *Monitor) evaluateBand(rate uint64, now time.Time) {
	next := stateInRange
	if rate < m.cfg.MinBitrate {
		next = stateLower
	} else if m.cfg.MaxBitrate > 0 && rate > m.cfg.MaxBitrate {
		next = stateGreater
	}

	prev := state(m.st.Load())
	if next == prev {
		return
	}
	m.st.Store(int32(next))
	switch next {
	case stateLower:
		m.pendingGoLabel = m.cfg.GoBelowLabel
	case stateGreater:
		m.pendingGoLabel = m.cfg.GoAboveLabel
	default:
		m.pendingGoLabel = m.cfg.GoNormalLabel
	}

	if m.report != nil {
		m.report.Warnf("bitratemonitor: bitrate %d b/s transitioned %s -> %s", rate, prev, next)
	}
	metrics.BitrateMonitorAlarmsTotal.WithLabelValues(m.runID, m.stageName, next.String()).Inc()
	m.lastAlarm = now
	m.runAlarmCommand(rate, next)
}

func (m *Monitor) runAlarmCommand(rate uint64, st state) {
	if m.cfg.AlarmCommand == "" {
		return
	}
	subject := m.cfg.TSID
	if subject == "" && m.cfg.HasPID {
		subject = strconv.Itoa(int(m.cfg.PID))
	}
	args := []string{
		fmt.Sprintf("bitrate %s band", st),
		subject,
		st.String(),
		strconv.FormatUint(rate, 10),
		strconv.FormatUint(m.cfg.MinBitrate, 10),
		strconv.FormatUint(m.cfg.MaxBitrate, 10),
		strconv.FormatUint(rate, 10),
	}
	cmd := exec.Command(m.cfg.AlarmCommand, args...)
	if err := cmd.Run(); err != nil && m.report != nil {
		m.report.Errorf("bitratemonitor: alarm command failed: %v", err)
	}
}

func init() {
	plugin.RegisterProcessor("bitratemonitor", func() plugin.Processor { return New() })
}
