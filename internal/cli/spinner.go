package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner animates a one-line status while a layout runs. Past one second
// the elapsed time is appended, since a cold server start takes a while.
// Nothing is drawn when status output is not a terminal.
type Spinner struct {
	message string
	animate bool
	ctx     context.Context
	cancel  context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
	width    int // of the last frame, for clearing
}

func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message)
}

// newSpinnerWithContext returns a spinner that also stops when ctx ends.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spinner{message: message, animate: isTerminal(), ctx: ctx, cancel: cancel}
}

// isTerminal reports whether status output goes to a terminal.
func isTerminal() bool {
	f, ok := statusOut.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (s *Spinner) Start() {
	s.wg.Add(1)
	go s.run(time.Now())
}

func (s *Spinner) run(start time.Time) {
	defer s.wg.Done()
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-s.ctx.Done():
			s.clear()
			return
		case <-ticker.C:
			if s.animate {
				s.draw(frame, time.Since(start))
			}
		}
	}
}

func (s *Spinner) draw(frame int, elapsed time.Duration) {
	text := s.message
	if elapsed >= time.Second {
		text += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
	}
	icon := string(spinnerFrames[frame%len(spinnerFrames)])
	fmt.Fprintf(statusOut, "\r%s %s", styleIconSpinner.Render(icon), StyleDim.Render(text))
	s.width = len(text) + 2
}

func (s *Spinner) clear() {
	if s.animate && s.width > 0 {
		fmt.Fprintf(statusOut, "\r%*s\r", s.width, "")
	}
}

// Stop ends the animation and clears the line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the spinner's context has ended, either through
// Stop or the parent context.
func (s *Spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}
