package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/drone-os/drone/internal/testutil"
)

func TestPipelineDecodesAndRoutes(t *testing.T) {
	all, allBuf := bufferSink("all")
	one, oneBuf := bufferSink("one")
	table, err := NewSinkTable([]Route{{Sink: all}, {Ports: []uint32{1}, Sink: one}})
	if err != nil {
		t.Fatal(err)
	}

	var input []byte
	input = append(input, syncPacket...)
	input = append(input, 0x01, 'a', 0x09, 'b', 0x02, 'c', 'd')

	p := &Pipeline{Decoder: NewITMDecoder(), Sinks: table}
	if err := p.Run(context.Background(), bytes.NewReader(input)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if allBuf.String() != "abcd" {
		t.Errorf("all ports sink: %q", allBuf.String())
	}
	if oneBuf.String() != "b" {
		t.Errorf("port 1 sink: %q", oneBuf.String())
	}
}

func TestPipelineDecoderFault(t *testing.T) {
	sink, _ := bufferSink("out")
	table, _ := NewSinkTable([]Route{{Sink: sink}})
	p := &Pipeline{Decoder: NewITMDecoder(), Sinks: table}

	err := p.Run(context.Background(), bytes.NewReader([]byte{0x01, 'a', 0x90}))
	var fault *DecoderFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected DecoderFaultError, got %v", err)
	}
	if fault.Offset != 2 {
		t.Errorf("expected fault at offset 2, got %d", fault.Offset)
	}
}

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) { return 0, errors.New("device disconnected") }

func TestPipelineSourceError(t *testing.T) {
	sink, _ := bufferSink("out")
	table, _ := NewSinkTable([]Route{{Sink: sink}})
	p := &Pipeline{Decoder: NewITMDecoder(), Sinks: table}

	err := p.Run(context.Background(), brokenReader{})
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestPipelineCancellation(t *testing.T) {
	sink, _ := bufferSink("out")
	table, _ := NewSinkTable([]Route{{Sink: sink}})
	p := &Pipeline{Decoder: NewITMDecoder(), Sinks: table}

	pr, pw := io.Pipe()
	defer pw.Close()

	cause := errors.New("server exited")
	ctx, cancel := context.WithCancelCause(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- p.Run(ctx, pr) }()

	cancel(cause)
	err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for capture to stop")
	if !errors.Is(err, cause) {
		t.Fatalf("expected cancellation cause, got %v", err)
	}
	// Closing the source releases the reader goroutine.
	pr.Close()
}

// countingDecoder emits every byte as a record on port 0.
type countingDecoder struct{}

func (countingDecoder) Step(b byte) ([]Record, error) {
	return []Record{{Payload: []byte{b}}}, nil
}

func TestPipelineCustomDecoder(t *testing.T) {
	sink, buf := bufferSink("out")
	table, _ := NewSinkTable([]Route{{Sink: sink}})
	p := &Pipeline{Decoder: countingDecoder{}, Sinks: table}

	payload := bytes.Repeat([]byte("0123456789"), 200)
	if err := p.Run(context.Background(), bytes.NewReader(payload)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Errorf("expected %d bytes in order, got %d", len(payload), buf.Len())
	}
}
