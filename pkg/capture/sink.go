package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/drone-os/drone/pkg/config"
)

// PortsCount is the number of addressable ports.
const PortsCount = config.PortsCount

// Sink is one log destination.  Every write is flushed before Write
// returns.
type Sink struct {
	name   string
	w      *bufio.Writer
	closer io.Closer
}

// NewSink wraps w.  If w is an io.Closer it is closed by Close.
func NewSink(name string, w io.Writer) *Sink {
	s := &Sink{name: name, w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Stdout returns a sink writing to the process standard output.  Closing
// it flushes but leaves standard output open.
func Stdout() *Sink {
	return &Sink{name: "stdout", w: bufio.NewWriter(os.Stdout)}
}

// OpenSink opens path for appending, creating it if needed.  An empty
// path is standard output.
func OpenSink(path string) (*Sink, error) {
	if path == "" {
		return Stdout(), nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log output: %w", err)
	}
	return NewSink(path, f), nil
}

// Name identifies the sink in errors.
func (s *Sink) Name() string { return s.name }

// Write writes p and flushes it to the destination.
func (s *Sink) Write(p []byte) error {
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("writing log output %s: %w", s.name, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing log output %s: %w", s.name, err)
	}
	return nil
}

// Close flushes and releases the destination.
func (s *Sink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}

// Route sends the records of Ports, or of every port when Ports is
// empty, to Sink.
type Route struct {
	Ports []uint32
	Sink  *Sink
}

// Matches reports whether a record on port belongs to the route.
func (r Route) Matches(port uint32) bool {
	return len(r.Ports) == 0 || slices.Contains(r.Ports, port)
}

// SinkTable is an ordered set of routes.  It is read-only once built.
type SinkTable struct {
	routes []Route
}

// NewSinkTable validates routes and builds a table over them.
func NewSinkTable(routes []Route) (*SinkTable, error) {
	for _, r := range routes {
		if r.Sink == nil {
			return nil, errors.New("log route has no sink")
		}
		for _, p := range r.Ports {
			if p >= PortsCount {
				return nil, fmt.Errorf("log route for %s: port %d out of range (0-%d)", r.Sink.name, p, PortsCount-1)
			}
		}
	}
	return &SinkTable{routes: slices.Clone(routes)}, nil
}

// OpenSinkTable opens one sink per output.  With no outputs every port
// goes to standard output.
func OpenSinkTable(outputs []config.LogOutput) (*SinkTable, error) {
	if len(outputs) == 0 {
		outputs = []config.LogOutput{{}}
	}
	routes := make([]Route, 0, len(outputs))
	for _, out := range outputs {
		sink, err := OpenSink(out.Path)
		if err != nil {
			for _, r := range routes {
				_ = r.Sink.Close()
			}
			return nil, err
		}
		routes = append(routes, Route{Ports: out.Ports, Sink: sink})
	}
	table, err := NewSinkTable(routes)
	if err != nil {
		for _, r := range routes {
			_ = r.Sink.Close()
		}
		return nil, err
	}
	return table, nil
}

// Match returns the sinks that receive records on port, in route order.
func (t *SinkTable) Match(port uint32) []*Sink {
	var sinks []*Sink
	for _, r := range t.routes {
		if r.Matches(port) {
			sinks = append(sinks, r.Sink)
		}
	}
	return sinks
}

// Write delivers rec to every matching sink.  The first failing sink
// stops delivery.
func (t *SinkTable) Write(rec Record) error {
	if rec.Port >= PortsCount {
		return &DecoderFaultError{
			Format: "swo",
			Offset: -1,
			Reason: fmt.Sprintf("port %d out of range (0-%d)", rec.Port, PortsCount-1),
		}
	}
	for _, r := range t.routes {
		if !r.Matches(rec.Port) {
			continue
		}
		if err := r.Sink.Write(rec.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink.
func (t *SinkTable) Close() error {
	var errs []error
	for _, r := range t.routes {
		errs = append(errs, r.Sink.Close())
	}
	return errors.Join(errs...)
}
