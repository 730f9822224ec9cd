package debug

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetEnabled(false)

	Log("hidden %d", 1)
	LogTiming("op", time.Millisecond)
	LogEnterExit("fn")()
	Dump("x", 1)
	Section("s")

	if buf.Len() != 0 {
		t.Errorf("expected no output while disabled, got %q", buf.String())
	}
}

func TestLogEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetEnabled(true)
	defer SetEnabled(false)

	Log("visible: %d tasks", 3)
	LogEnterExit("Render")()
	Section("DAG")

	out := buf.String()
	for _, want := range []string{"[TUSK_DEBUG]", "visible: 3 tasks", "-> Render", "<- Render", "=== DAG ==="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !Enabled() {
		t.Error("Enabled() should report true")
	}
}
