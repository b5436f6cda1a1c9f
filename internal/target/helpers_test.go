package target

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeProcess struct {
	exit   chan struct{}
	once   sync.Once
	killed atomic.Int32
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exit: make(chan struct{})}
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed.Add(1)
	p.exitNow()
	return nil
}

func (p *fakeProcess) exitNow() {
	p.once.Do(func() { close(p.exit) })
}

type fakeLauncher struct {
	mu    sync.Mutex
	err   error
	names []string
	args  [][]string
	procs []*fakeProcess
}

func (l *fakeLauncher) Launch(name string, args ...string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess()
	l.names = append(l.names, name)
	l.args = append(l.args, args)
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) proc(i int) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

// fakeSurface is a Surface whose liveness is set directly.
type fakeSurface struct {
	opened    atomic.Bool
	alive     atomic.Bool
	openErr   error
	focusErr  error
	reloadErr error
	focuses   atomic.Int32
	reloads   atomic.Int32
}

func newFakeSurface(alive bool) *fakeSurface {
	s := &fakeSurface{}
	s.opened.Store(alive)
	s.alive.Store(alive)
	return s
}

func (s *fakeSurface) Open(context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened.Store(true)
	s.alive.Store(true)
	return nil
}

func (s *fakeSurface) Opened() bool { return s.opened.Load() }

func (s *fakeSurface) IsAlive() bool { return s.alive.Load() }

func (s *fakeSurface) Focus() error {
	s.focuses.Add(1)
	return s.focusErr
}

func (s *fakeSurface) Reload() error {
	s.reloads.Add(1)
	return s.reloadErr
}

func (s *fakeSurface) Close() error {
	s.alive.Store(false)
	return nil
}

func (s *fakeSurface) URL() string { return "https://example.test/review" }

// recordingClock returns at once and records requested durations.
type recordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
	failAt int
}

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if c.failAt > 0 && len(c.sleeps) == c.failAt {
		return context.Canceled
	}
	return ctx.Err()
}

var errLaunch = errors.New("exec: \"nope\": executable file not found in $PATH")
