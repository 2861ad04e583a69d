package capture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	startupGrace = 250 * time.Millisecond
	stopTimeout  = 1200 * time.Millisecond
)

// process wraps a running ffmpeg command with interrupt-then-kill shutdown.
type process struct {
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	waitErr chan error
	exited  chan struct{}

	stopOnce   sync.Once
	resultOnce sync.Once
	exitErr    error
}

// startProcess starts cmd and treats an exit within the startup grace
// period as a failure to start.
func startProcess(cmd *exec.Cmd) (*process, error) {
	var stderr bytes.Buffer
	if cmd.Stderr == nil {
		cmd.Stderr = &stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	p := &process{
		cmd:     cmd,
		stderr:  &stderr,
		waitErr: make(chan error, 1),
		exited:  make(chan struct{}),
	}
	go func() {
		p.waitErr <- cmd.Wait()
		close(p.exited)
	}()

	select {
	case <-p.exited:
		err := <-p.waitErr
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(startupGrace):
	}
	return p, nil
}

// Exited is closed once the process has terminated.
func (p *process) Exited() <-chan struct{} {
	return p.exited
}

// wait blocks until exit and reports the normalized exit error.
func (p *process) wait() error {
	<-p.exited
	p.resultOnce.Do(func() {
		p.exitErr = p.annotate(normalizeStopErr(<-p.waitErr))
	})
	return p.exitErr
}

// stop interrupts the process, kills it if it lingers, and waits for exit.
func (p *process) stop() error {
	p.stopOnce.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(os.Interrupt)
		}
		select {
		case <-p.exited:
		case <-time.After(stopTimeout):
			if p.cmd.Process != nil {
				_ = p.cmd.Process.Kill()
			}
		}
	})
	return p.wait()
}

func (p *process) annotate(err error) error {
	if err != nil && p.stderr != nil && p.stderr.Len() > 0 {
		return fmt.Errorf("%w: %s", err, trimOutput(p.stderr.String()))
	}
	return err
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
