// Package target manages the secondary browser surface that shows the review page.
//
// The surface is only opened, focused, reloaded and polled for liveness. Nothing
// here reads or drives the page itself.
package target

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

var (
	// ErrLaunchBlocked is returned when the browser could not be started.
	ErrLaunchBlocked = errors.New("browser launch blocked")

	// ErrNotOpen is returned by operations that need a live surface.
	ErrNotOpen = errors.New("surface is not open")
)

// Surface is a window showing the target page.
type Surface interface {
	Open(ctx context.Context) error
	// Opened reports whether Open has ever succeeded, whether or not the
	// window is still alive.
	Opened() bool
	IsAlive() bool
	Focus() error
	Reload() error
	Close() error
	URL() string
}

// Process is a started browser process.
type Process interface {
	Wait() error
	Kill() error
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(name string, args ...string) (Process, error)
}

// ExecLauncher starts processes with os/exec.
type ExecLauncher struct{}

func (ExecLauncher) Launch(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

// BrowserSurface runs a browser command pointed at a URL. The surface is alive
// while the launched process has not exited.
type BrowserSurface struct {
	browser  string
	args     []string
	url      string
	launcher Launcher

	mu   sync.Mutex
	proc Process
	done chan struct{}
}

// NewBrowserSurface creates a surface that launches browser with args followed by url.
func NewBrowserSurface(browser string, args []string, url string) *BrowserSurface {
	return &BrowserSurface{
		browser:  browser,
		args:     append([]string(nil), args...),
		url:      url,
		launcher: ExecLauncher{},
	}
}

// SetLauncher replaces the process launcher. Used by tests.
func (b *BrowserSurface) SetLauncher(l Launcher) {
	b.launcher = l
}

func (b *BrowserSurface) URL() string {
	return b.url
}

// Open launches the browser unless a launched process is still alive.
func (b *BrowserSurface) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.aliveLocked() {
		return nil
	}
	return b.launchLocked()
}

func (b *BrowserSurface) launchLocked() error {
	if b.browser == "" {
		return fmt.Errorf("%w: no browser configured", ErrLaunchBlocked)
	}

	args := append(append([]string(nil), b.args...), b.url)
	proc, err := b.launcher.Launch(b.browser, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchBlocked, b.browser, err)
	}

	done := make(chan struct{})
	go func() {
		_ = proc.Wait()
		close(done)
	}()

	b.proc = proc
	b.done = done
	return nil
}

func (b *BrowserSurface) Opened() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done != nil
}

func (b *BrowserSurface) IsAlive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aliveLocked()
}

func (b *BrowserSurface) aliveLocked() bool {
	if b.done == nil {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Focus returns ErrNotOpen once the browser has exited. Raising the window is
// left to the window manager.
func (b *BrowserSurface) Focus() error {
	if !b.IsAlive() {
		return ErrNotOpen
	}
	return nil
}

// Reload restarts the browser process on the same URL.
func (b *BrowserSurface) Reload() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.aliveLocked() {
		return ErrNotOpen
	}
	if err := b.stopLocked(); err != nil {
		return fmt.Errorf("stopping browser: %w", err)
	}
	return b.launchLocked()
}

// Close kills the browser process and waits for it to exit.
func (b *BrowserSurface) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.aliveLocked() {
		return nil
	}
	return b.stopLocked()
}

func (b *BrowserSurface) stopLocked() error {
	if err := b.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-b.done
	return nil
}
