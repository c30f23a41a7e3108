package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/broker"
	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/probe"
	"github.com/petems/capture-inventory/internal/registry"
)

// manualClock only fires timers when Advance is called
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []manualTimer
	afters int
}

type manualTimer struct {
	at time.Time
	ch chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := manualTimer{at: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	c.afters++
	return t.ch
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	pending := c.timers[:0]
	for _, t := range c.timers {
		if !t.at.After(c.now) {
			t.ch <- c.now
			continue
		}
		pending = append(pending, t)
	}
	c.timers = pending
}

func (c *manualClock) Afters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.afters
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func next(t *testing.T, sub *broker.Subscription) broker.Notification {
	t.Helper()
	select {
	case n, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	return broker.Notification{}
}

func assertQuiet(t *testing.T, sub *broker.Subscription) {
	t.Helper()
	select {
	case n := <-sub.C():
		t.Fatalf("expected no notification, got %+v", n)
	default:
	}
}

func devs(ids ...string) []device.Device {
	out := make([]device.Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, device.Device{ID: id, Name: "dev " + id})
	}
	return out
}

func idsOf(devices []device.Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.ID)
	}
	return out
}

func sameIDs(got []device.Device, want ...string) bool {
	g := idsOf(got)
	if len(g) != len(want) {
		return false
	}
	for i := range want {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

type fixture struct {
	fake    *probe.Fake
	reg     *registry.Registry
	broker  *broker.Broker
	watcher *Watcher
	clock   *manualClock
	hints   chan struct{}
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		fake:   probe.NewFake(time.Unix(0, 0)),
		reg:    registry.New(zerolog.Nop()),
		broker: broker.New(8, zerolog.Nop()),
		clock:  newManualClock(),
		hints:  make(chan struct{}, 1),
	}
	f.watcher = New(Config{
		Prober:   f.fake,
		Registry: f.reg,
		Broker:   f.broker,
		Kinds:    []device.Kind{device.Audio},
		Interval: interval,
		Clock:    f.clock,
		Hints:    f.hints,
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(f.watcher.Stop)
	return f
}

func TestWatcherPollsAndPublishesDiff(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	f.fake.Push(device.Audio,
		probe.FakeResult{Devices: devs("A", "B")},
		probe.FakeResult{Devices: devs("A", "C")},
	)
	sub, _ := f.broker.Subscribe()

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first := next(t, sub)
	if first.Type != broker.Change || !sameIDs(first.Change.Added, "A", "B") || len(first.Change.Removed) != 0 {
		t.Fatalf("expected initial all-added event, got %+v", first)
	}

	eventually(t, "loop to wait on the clock", func() bool { return f.clock.Afters() >= 1 })
	f.clock.Advance(2 * time.Second)

	second := next(t, sub)
	if !sameIDs(second.Change.Added, "C") || !sameIDs(second.Change.Removed, "B") {
		t.Fatalf("expected added=C removed=B, got added=%v removed=%v",
			idsOf(second.Change.Added), idsOf(second.Change.Removed))
	}
}

func TestWatcherDoesNotPollBeforeInterval(t *testing.T) {
	f := newFixture(t, 2*time.Second)

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	eventually(t, "loop to wait on the clock", func() bool { return f.clock.Afters() >= 1 })

	f.clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	if got := f.fake.Calls(device.Audio); got != 1 {
		t.Fatalf("expected only the initial probe, got %d", got)
	}

	f.clock.Advance(time.Second)
	eventually(t, "second probe", func() bool { return f.fake.Calls(device.Audio) == 2 })
}

func TestWatcherReportsProbeFailuresThenRecovers(t *testing.T) {
	f := newFixture(t, time.Second)
	f.fake.Push(device.Audio,
		probe.FakeResult{Err: probe.ErrProbeUnavailable},
		probe.FakeResult{Err: probe.ErrProbeUnavailable},
		probe.FakeResult{Devices: devs("A")},
	)
	sub, _ := f.broker.Subscribe()

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	n := next(t, sub)
	if n.Type != broker.ProbeFailed || !errors.Is(n.Err, probe.ErrProbeUnavailable) {
		t.Fatalf("expected first ProbeFailed, got %+v", n)
	}

	eventually(t, "first wait", func() bool { return f.clock.Afters() >= 1 })
	f.clock.Advance(time.Second)
	if n := next(t, sub); n.Type != broker.ProbeFailed {
		t.Fatalf("expected second ProbeFailed, got %+v", n)
	}
	if f.reg.HasSnapshot(device.Audio) {
		t.Fatal("registry must not change on probe failure")
	}

	eventually(t, "second wait", func() bool { return f.clock.Afters() >= 2 })
	f.clock.Advance(time.Second)
	n = next(t, sub)
	if n.Type != broker.Change || !sameIDs(n.Change.Added, "A") {
		t.Fatalf("expected change adding A, got %+v", n)
	}
}

func TestUnsubscribeMidCycleStopsDelivery(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.fake.Push(device.Audio,
		probe.FakeResult{Devices: devs("A")},
		probe.FakeResult{Devices: devs("A", "B")},
	)

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	sub, _ := f.broker.Subscribe()
	f.fake.Hook = func(kind device.Kind) { sub.Cancel() }

	if err := f.watcher.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if _, ok := <-sub.C(); ok {
		t.Fatal("expected no delivery after unsubscribe")
	}
	if f.broker.Count() != 0 {
		t.Fatalf("expected subscriber count 0, got %d", f.broker.Count())
	}
	if !f.reg.Current(device.Audio).Has("B") {
		t.Error("cycle should still complete after unsubscribe")
	}
}

func TestStaleSnapshotIsNotPublished(t *testing.T) {
	f := newFixture(t, time.Hour)
	at := time.Unix(50, 0)
	f.fake.Push(device.Audio, probe.FakeResult{Devices: devs("A"), At: at})
	sub, _ := f.broker.Subscribe()

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	next(t, sub)

	// The fake repeats the last result, including its fixed timestamp
	if err := f.watcher.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	assertQuiet(t, sub)
	if !f.reg.Current(device.Audio).TakenAt().Equal(at) {
		t.Error("stale snapshot changed registry")
	}
}

func TestUnchangedProbeIsNotPublished(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.fake.Push(device.Audio, probe.FakeResult{Devices: devs("A")})
	sub, _ := f.broker.Subscribe()

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	next(t, sub)

	if err := f.watcher.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	assertQuiet(t, sub)
	if f.watcher.Cycles() != 2 {
		t.Errorf("expected 2 cycles, got %d", f.watcher.Cycles())
	}
}

func TestHintTriggersEarlyCycle(t *testing.T) {
	f := newFixture(t, time.Hour)

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.hints <- struct{}{}

	eventually(t, "hinted probe", func() bool { return f.fake.Calls(device.Audio) == 2 })
}

func TestStopLifecycle(t *testing.T) {
	f := newFixture(t, time.Hour)

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.watcher.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	f.watcher.Stop()
	f.watcher.Stop()

	if f.watcher.State() != Stopped {
		t.Fatalf("expected Stopped, got %s", f.watcher.State())
	}
	if err := f.watcher.Refresh(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := f.watcher.Start(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected restart to fail with ErrNotRunning, got %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	f := newFixture(t, time.Hour)

	f.watcher.Stop()
	if f.watcher.State() != Stopped {
		t.Fatalf("expected Stopped, got %s", f.watcher.State())
	}
	if f.fake.Calls(device.Audio) != 0 {
		t.Error("expected no probes")
	}
}

func TestContextCancelStopsLoop(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	if err := f.watcher.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	eventually(t, "stopped state", func() bool { return f.watcher.State() == Stopped })
	if err := f.watcher.Refresh(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStopWaitsForInFlightCycle(t *testing.T) {
	f := newFixture(t, time.Hour)
	entered := make(chan struct{})
	release := make(chan struct{})

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.fake.Hook = func(kind device.Kind) {
		close(entered)
		<-release
	}
	f.fake.Push(device.Audio, probe.FakeResult{Devices: devs("A")})

	go f.watcher.Refresh(context.Background())
	<-entered

	stopped := make(chan struct{})
	go func() {
		f.watcher.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight cycle finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-stopped
	if !f.reg.Current(device.Audio).Has("A") {
		t.Error("in-flight cycle should complete before stopping")
	}
}
