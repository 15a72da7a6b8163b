package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerStop(t *testing.T) {
	s := newSpinner("Laying out g1...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if !s.Cancelled() {
		t.Error("spinner should report cancelled after Stop")
	}
	s.Stop()
}

func TestSpinnerFollowsParentContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"cancel", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx, cancel
		}},
		{"timeout", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 20*time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			s := newSpinnerWithContext(ctx, "Waiting for server...")
			s.Start()
			time.Sleep(100 * time.Millisecond)

			if !s.Cancelled() {
				t.Error("spinner should follow its parent context")
			}
			s.Stop()
		})
	}
}

func TestSpinnerStopMessages(t *testing.T) {
	var buf bytes.Buffer
	old := statusOut
	statusOut = &buf
	defer func() { statusOut = old }()

	s := newSpinner("Laying out...")
	s.Start()
	s.StopWithError("Layout failed")

	s = newSpinner("Laying out...")
	s.Start()
	s.StopWithSuccess("Done")

	out := buf.String()
	if !strings.Contains(out, "✗ Layout failed") || !strings.Contains(out, "✓ Done") {
		t.Errorf("status output = %q", out)
	}
}

func TestSpinnerSilentWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	old := statusOut
	statusOut = &buf
	defer func() { statusOut = old }()

	s := newSpinner("Quiet...")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if buf.Len() != 0 {
		t.Errorf("spinner should not draw to a non-terminal, got %q", buf.String())
	}
}

func TestSpinnerDrawShowsElapsed(t *testing.T) {
	var buf bytes.Buffer
	old := statusOut
	statusOut = &buf
	defer func() { statusOut = old }()

	s := newSpinner("Starting server")
	s.draw(0, 2500*time.Millisecond)

	if !strings.Contains(buf.String(), "Starting server (2s)") {
		t.Errorf("frame = %q", buf.String())
	}
	s.cancel()
}
