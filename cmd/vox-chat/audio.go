// ABOUTME: External-process audio for vox-chat: a player per reply and a recorder
// ABOUTME: Pause and resume use SIGSTOP/SIGCONT; rewinding kills the process

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/2389/vox-gateway/internal/chatview"
)

// execAudioFactory plays URLs with an external command such as ffplay.
// The URL is appended as the last argument.
func execAudioFactory(command []string) chatview.AudioFactory {
	return func(url string, done func(error)) (chatview.AudioHandle, error) {
		if len(command) == 0 {
			return nil, errors.New("no player command configured")
		}
		if _, err := exec.LookPath(command[0]); err != nil {
			return nil, fmt.Errorf("player %q: %w", command[0], err)
		}
		return &execHandle{command: command, url: url, done: done}, nil
	}
}

// execHandle runs one player process at a time. run counts starts so a
// process killed by Rewind or Close does not report its exit.
type execHandle struct {
	command []string
	url     string
	done    func(error)

	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
	run    int
	closed bool
}

func (h *execHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("audio handle closed")
	}
	if h.cmd != nil {
		if h.paused {
			h.paused = false
			return h.cmd.Process.Signal(syscall.SIGCONT)
		}
		return nil
	}

	args := append(append([]string{}, h.command[1:]...), h.url)
	cmd := exec.Command(h.command[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting player: %w", err)
	}
	h.cmd = cmd
	h.run++
	run := h.run
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		current := h.run == run && h.cmd == cmd
		if current {
			h.cmd = nil
			h.paused = false
		}
		h.mu.Unlock()
		if current {
			h.done(err)
		}
	}()
	return nil
}

func (h *execHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd != nil && !h.paused {
		if err := h.cmd.Process.Signal(syscall.SIGSTOP); err == nil {
			h.paused = true
		}
	}
}

func (h *execHandle) Rewind() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stop()
}

func (h *execHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.stop()
	return nil
}

// stop kills the running process. h.mu must be held.
func (h *execHandle) stop() {
	if h.cmd == nil {
		return
	}
	h.run++
	_ = h.cmd.Process.Kill()
	if h.paused {
		_ = h.cmd.Process.Signal(syscall.SIGCONT)
	}
	h.cmd = nil
	h.paused = false
}

// execMic records by running a command that writes audio to stdout.
type execMic struct {
	command []string
}

func (m execMic) Open(ctx context.Context) (chatview.Recording, error) {
	if len(m.command) == 0 {
		return nil, chatview.ErrUnsupported
	}
	if _, err := exec.LookPath(m.command[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", chatview.ErrUnsupported, err)
	}

	cmd := exec.CommandContext(ctx, m.command[0], m.command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", chatview.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("starting recorder: %w", err)
	}

	rec := &execRecording{cmd: cmd, chunks: make(chan []byte, 16), done: make(chan struct{})}
	go rec.read(stdout)
	return rec, nil
}

type execRecording struct {
	cmd    *exec.Cmd
	chunks chan []byte
	done   chan struct{}
	once   sync.Once
}

func (r *execRecording) read(stdout io.Reader) {
	defer close(r.done)
	defer close(r.chunks)
	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			r.chunks <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			return
		}
	}
}

func (r *execRecording) Chunks() <-chan []byte {
	return r.chunks
}

// Close interrupts the recorder so it finalizes its output, then waits for
// the remaining audio to be read.
func (r *execRecording) Close() error {
	var err error
	r.once.Do(func() {
		if sigErr := r.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			_ = r.cmd.Process.Kill()
		}
		<-r.done
		err = r.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Interrupted recorders exit non-zero.
			err = nil
		}
	})
	return err
}
