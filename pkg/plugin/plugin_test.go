package plugin

import (
	"testing"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
)

// basePlugin is embedded by the mocks below to avoid repeating every
// lifecycle method's zero-value implementation.
type basePlugin struct {
	kind   Kind
	report ReportSink
}

func (b *basePlugin) Kind() Kind                       { return b.kind }
func (b *basePlugin) ResetContext() error              { return nil }
func (b *basePlugin) Analyze(map[string]any) error     { return nil }
func (b *basePlugin) Start() error                     { return nil }
func (b *basePlugin) Stop() error                      { return nil }
func (b *basePlugin) HandlePacketTimeout() bool        { return false }
func (b *basePlugin) IsRealTime() bool                 { return false }
func (b *basePlugin) RedirectReport(s ReportSink) ReportSink {
	prev := b.report
	b.report = s
	return prev
}

type mockInput struct{ basePlugin }

func newMockInput() *mockInput { return &mockInput{basePlugin{kind: KindInput}} }

func (m *mockInput) Receive(pkts []buffer.Packet, meta []buffer.Metadata) (int, error) {
	return 0, nil
}

type lifecycleMockProcessor struct{ basePlugin }

func newMockProcessor() *lifecycleMockProcessor {
	return &lifecycleMockProcessor{basePlugin{kind: KindProcessor}}
}

func (m *lifecycleMockProcessor) ProcessPacket(pkt *buffer.Packet, meta *buffer.Metadata) Status {
	return StatusOK
}

type mockOutput struct{ basePlugin }

func newMockOutput() *mockOutput { return &mockOutput{basePlugin{kind: KindOutput}} }

func (m *mockOutput) Send(pkts []buffer.Packet, meta []buffer.Metadata, count int) error {
	return nil
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInput:     "input",
		KindProcessor: "processor",
		KindOutput:    "output",
		Kind(99):      "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestMockInputSatisfiesInput(t *testing.T) {
	var _ Input = newMockInput()
}

func TestMockProcessorSatisfiesProcessor(t *testing.T) {
	var _ Processor = newMockProcessor()
}

func TestMockOutputSatisfiesOutput(t *testing.T) {
	var _ Output = newMockOutput()
}

func TestRedirectReportReturnsPrevious(t *testing.T) {
	p := newMockProcessor()
	sinkA := &recordingSink{}
	sinkB := &recordingSink{}

	prev := p.RedirectReport(sinkA)
	if prev != nil {
		t.Fatalf("expected nil previous sink, got %v", prev)
	}
	prev = p.RedirectReport(sinkB)
	if prev != sinkA {
		t.Fatalf("expected previous sink to be sinkA")
	}
}

type recordingSink struct {
	infos, warns, errs []string
}

func (r *recordingSink) Infof(format string, args ...any)  { r.infos = append(r.infos, format) }
func (r *recordingSink) Warnf(format string, args ...any)  { r.warns = append(r.warns, format) }
func (r *recordingSink) Errorf(format string, args ...any) { r.errs = append(r.errs, format) }
