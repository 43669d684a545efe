package plugin

import (
	"errors"
	"testing"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
)

type mockPlugin struct {
	name        string
	analyzeErr  error
	startErr    error
	stopErr     error
	startCalled bool
	stopCalled  bool
}

func (m *mockPlugin) Kind() Kind                    { return KindProcessor }
func (m *mockPlugin) ResetContext() error           { return nil }
func (m *mockPlugin) Analyze(map[string]any) error  { return m.analyzeErr }
func (m *mockPlugin) Start() error                  { m.startCalled = true; return m.startErr }
func (m *mockPlugin) Stop() error                   { m.stopCalled = true; return m.stopErr }
func (m *mockPlugin) HandlePacketTimeout() bool     { return true }
func (m *mockPlugin) IsRealTime() bool               { return false }
func (m *mockPlugin) RedirectReport(s ReportSink) ReportSink { return nil }

type mockProcessor struct {
	mockPlugin
	status Status
}

func (m *mockProcessor) ProcessPacket(pkt *buffer.Packet, meta *buffer.Metadata) Status {
	return m.status
}

func TestRegisterAndGetProcessor(t *testing.T) {
	processorReg.reset()

	RegisterProcessor("test_proc", func() Processor {
		return &mockProcessor{mockPlugin: mockPlugin{name: "test_proc"}, status: StatusOK}
	})

	factory, err := GetProcessorFactory("test_proc")
	if err != nil {
		t.Fatalf("GetProcessorFactory failed: %v", err)
	}

	instance := factory()
	if instance.Kind() != KindProcessor {
		t.Errorf("expected KindProcessor, got %v", instance.Kind())
	}
}

func TestGetNotFoundReturnsError(t *testing.T) {
	processorReg.reset()

	_, err := GetProcessorFactory("nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent processor")
	}
	if !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestDuplicateRegisterPanics(t *testing.T) {
	processorReg.reset()

	RegisterProcessor("dup", func() Processor { return &mockProcessor{} })

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for duplicate registration")
		}
	}()
	RegisterProcessor("dup", func() Processor { return &mockProcessor{} })
}

func TestEmptyNamePanics(t *testing.T) {
	processorReg.reset()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for empty name")
		}
	}()
	RegisterProcessor("", func() Processor { return &mockProcessor{} })
}

func TestNilFactoryPanics(t *testing.T) {
	processorReg.reset()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for nil factory")
		}
	}()
	RegisterProcessor("test", nil)
}

func TestListIsSorted(t *testing.T) {
	processorReg.reset()

	RegisterProcessor("proc_c", func() Processor { return &mockProcessor{} })
	RegisterProcessor("proc_a", func() Processor { return &mockProcessor{} })
	RegisterProcessor("proc_b", func() Processor { return &mockProcessor{} })

	got := ListProcessors()
	want := []string{"proc_a", "proc_b", "proc_c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestKindsDoNotConflict(t *testing.T) {
	processorReg.reset()
	inputReg.reset()
	outputReg.reset()

	name := "common_name"
	RegisterInput(name, func() Input { return nil })
	RegisterProcessor(name, func() Processor { return &mockProcessor{} })
	RegisterOutput(name, func() Output { return nil })

	if _, err := GetInputFactory(name); err != nil {
		t.Errorf("GetInputFactory: %v", err)
	}
	if _, err := GetProcessorFactory(name); err != nil {
		t.Errorf("GetProcessorFactory: %v", err)
	}
	if _, err := GetOutputFactory(name); err != nil {
		t.Errorf("GetOutputFactory: %v", err)
	}
}
