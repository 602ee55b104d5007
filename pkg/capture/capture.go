// Package capture turns a raw trace byte stream into decoded log records
// and routes them to sinks by port.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Record is one decoded log message fragment.
type Record struct {
	Port    uint32
	Payload []byte
}

// Decoder is a resumable stream decoder.  Step consumes exactly one byte
// and returns the records that byte completed, if any.  A nil slice with
// a nil error means more input is needed.  A non-nil error is a
// malformed stream; there is no recovery from it.
type Decoder interface {
	Step(b byte) ([]Record, error)
}

// DecoderFaultError reports malformed trace input.  Offset is -1 when
// the fault is not tied to a single input byte, and Byte is then unset.
type DecoderFaultError struct {
	Format string
	Offset int64
	Byte   byte
	Reason string
}

func (e *DecoderFaultError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s log parser failure: %s", e.Format, e.Reason)
	}
	return fmt.Sprintf("%s log parser failure at byte %d (0x%02X): %s", e.Format, e.Offset, e.Byte, e.Reason)
}

// sourceBuffer is the capacity of the channel between the blocking
// reader goroutine and the decoding loop.
const sourceBuffer = 512

// Pipeline drives a Decoder over a byte source and writes the decoded
// records to a SinkTable.
type Pipeline struct {
	Decoder Decoder
	Sinks   *SinkTable
	Logger  *slog.Logger
}

// Run captures from src until src reaches EOF, ctx is cancelled, the
// decoder faults, or a sink write fails.  EOF returns nil; cancellation
// returns the cause of ctx.
//
// src is read on a background goroutine.  If Run returns because of ctx
// that goroutine may still be blocked in Read; closing src releases it.
func (p *Pipeline) Run(ctx context.Context, src io.Reader) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bytesCh := make(chan byte, sourceBuffer)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		r := bufio.NewReader(src)
		for {
			b, err := r.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case bytesCh <- b:
			case <-stop:
				return
			}
		}
	}()

	trace := logger.Enabled(ctx, slog.LevelDebug)
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case b := <-bytesCh:
			if err := p.step(ctx, logger, trace, b); err != nil {
				return err
			}
		case err := <-readErr:
			// Bytes read before the error are still queued.
			for drained := false; !drained; {
				select {
				case b := <-bytesCh:
					if err := p.step(ctx, logger, trace, b); err != nil {
						return err
					}
				default:
					drained = true
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading log source: %w", err)
		}
	}
}

func (p *Pipeline) step(ctx context.Context, logger *slog.Logger, trace bool, b byte) error {
	if trace {
		logger.DebugContext(ctx, "log byte",
			"bin", fmt.Sprintf("0b%08b", b),
			"hex", fmt.Sprintf("0x%02X", b),
			"char", fmt.Sprintf("%q", rune(b)))
	}
	records, err := p.Decoder.Step(b)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := p.Sinks.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
