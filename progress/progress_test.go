package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type mockState struct {
	value string
}

func (m *mockState) String() string {
	return m.value
}

func TestProgressAdd(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	defer p.Stop()

	p.Add("a", &mockState{value: "state1"})
	p.Add("b", &mockState{value: "state2"})

	if len(p.states) != 2 {
		t.Errorf("states count = %d, want 2", len(p.states))
	}
}

func TestProgressStop(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)

	// give the renderer goroutine time to start
	time.Sleep(50 * time.Millisecond)

	if !p.Stop() {
		t.Error("Stop() should return true on first call")
	}

	if p.Stop() {
		t.Error("Stop() should return false on subsequent calls")
	}
}

func TestProgressStopSpinners(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)

	spinner := NewSpinner("loading")
	p.Add("spinner", spinner)

	time.Sleep(50 * time.Millisecond)

	if !spinner.stopped.IsZero() {
		t.Error("spinner should not be stopped before Progress.Stop()")
	}

	p.Stop()

	if spinner.stopped.IsZero() {
		t.Error("spinner should be stopped after Progress.Stop()")
	}
}

func TestProgressStopDuringAdd(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			p.Add("key", NewSpinner("loading"))
		}
	}()

	p.Stop()
	<-done

	// every spinner added before the stop walked states is stopped;
	// the walk itself must not race the appends
	p.Stop()
}

func TestProgressRender(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	defer p.Stop()

	p.Add("key", &mockState{value: "test output"})

	// wait for at least one render cycle
	time.Sleep(150 * time.Millisecond)

	if output := buf.String(); !strings.Contains(output, "test output") {
		t.Errorf("render should include state output, got %q", output)
	}
}
