// Package signals turns operator interrupts into a broadcast stream of
// signal kinds and provides the one cancellation primitive the rest of
// drone uses: racing a blocking operation against that stream.
package signals

import (
	"errors"
	"os"
	"os/signal"
	"sync"
)

// Kind is the normalized kind of an operator signal.
type Kind int

const (
	Interrupt Kind = iota + 1 // SIGINT, Ctrl+C
	Quit                      // SIGQUIT
	Terminate                 // SIGTERM
	CtrlBreak                 // Windows CTRL_BREAK_EVENT
)

func (k Kind) String() string {
	switch k {
	case Interrupt:
		return "interrupt"
	case Quit:
		return "quit"
	case Terminate:
		return "terminate"
	case CtrlBreak:
		return "ctrl-break"
	default:
		return "unknown"
	}
}

// subscriptionBuffer bounds how many undelivered signals a single
// subscriber can hold before further ones are dropped for it.
const subscriptionBuffer = 8

// ErrMonitorStopped is returned by Install once the process-wide
// monitor has been torn down.
var ErrMonitorStopped = errors.New("signal monitor stopped")

// Monitor fans operator signals out to every subscriber.  Each
// subscriber sees every signal delivered after it subscribed.
type Monitor struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	stopped bool

	osChan chan os.Signal
}

// NewMonitor returns a monitor with no OS hooks installed.  Signals
// reach it only through Deliver.
func NewMonitor() *Monitor {
	return &Monitor{subs: make(map[*Subscription]struct{})}
}

var (
	processMonitor *Monitor
	installOnce    sync.Once
)

// Install hooks the platform's interrupt signals and returns the
// process-wide monitor.  Repeated calls return the same monitor.
func Install() (*Monitor, error) {
	installOnce.Do(func() {
		m := NewMonitor()
		m.osChan = make(chan os.Signal, subscriptionBuffer)
		signal.Notify(m.osChan, notifySignals...)
		go m.pump()
		processMonitor = m
	})

	processMonitor.mu.Lock()
	defer processMonitor.mu.Unlock()
	if processMonitor.stopped {
		return nil, ErrMonitorStopped
	}
	return processMonitor, nil
}

func (m *Monitor) pump() {
	for sig := range m.osChan {
		if kind, ok := kindOf(sig); ok {
			m.Deliver(kind)
		}
	}
}

// Subscribe registers a new consumer.  The returned subscription must
// be closed when the consumer no longer polls it.
func (m *Monitor) Subscribe() *Subscription {
	ch := make(chan Kind, subscriptionBuffer)
	s := &Subscription{C: ch, ch: ch, monitor: m}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		close(ch)
		return s
	}
	m.subs[s] = struct{}{}
	return s
}

// Deliver broadcasts kind to all current subscribers.  A subscriber
// whose buffer is full misses this delivery.
func (m *Monitor) Deliver(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.subs {
		select {
		case s.ch <- kind:
		default:
		}
	}
}

// Stop tears the monitor down.  OS hooks are released and every
// subscription channel is closed.  A stopped monitor cannot be restarted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	if m.osChan != nil {
		signal.Stop(m.osChan)
		close(m.osChan)
	}
	for s := range m.subs {
		close(s.ch)
	}
	m.subs = nil
}

// Subscription is one consumer's view of the monitor's signal stream.
type Subscription struct {
	// C receives every signal delivered after Subscribe.  It is closed
	// when the subscription or the monitor is closed.
	C <-chan Kind

	ch      chan Kind
	monitor *Monitor
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	m := s.monitor
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s]; !ok {
		return
	}
	delete(m.subs, s)
	close(s.ch)
}
