package capture

import "fmt"

// ITM packet decoder for ARM SWO trace streams.

type itmState int

const (
	itmHeader   itmState = iota // waiting for a packet header
	itmSync                     // inside a synchronization packet
	itmSkip                     // skipping a fixed-size payload
	itmContinue                 // skipping bytes until one without the continuation bit
	itmSource                   // collecting an instrumentation payload
)

const (
	// A synchronization packet is at least 47 zero bits followed by a
	// one bit: five zero bytes, the last bit of which arrives in 0x80.
	itmSyncZeros = 5
	// Longest continuation run (a 64-bit global timestamp).
	itmMaxContinuation = 6
)

// ITMDecoder decodes the Instrumentation Trace Macrocell protocol.
// Instrumentation (software source) packets are emitted as records on
// their stimulus port; timestamps, overflow, extension and hardware
// source packets are consumed without output.
type ITMDecoder struct {
	state  itmState
	offset int64

	zeros     int
	remaining int
	run       int
	port      uint32
	payload   []byte
}

// NewITMDecoder returns a decoder positioned before a packet header.
func NewITMDecoder() *ITMDecoder {
	return &ITMDecoder{}
}

// Step implements Decoder.
func (d *ITMDecoder) Step(b byte) ([]Record, error) {
	defer func() { d.offset++ }()

	switch d.state {
	case itmSync:
		return nil, d.stepSync(b)
	case itmSkip:
		d.remaining--
		if d.remaining == 0 {
			d.state = itmHeader
		}
		return nil, nil
	case itmContinue:
		return nil, d.stepContinue(b)
	case itmSource:
		d.payload = append(d.payload, b)
		d.remaining--
		if d.remaining > 0 {
			return nil, nil
		}
		d.state = itmHeader
		rec := Record{Port: d.port, Payload: d.payload}
		d.payload = nil
		return []Record{rec}, nil
	}
	return nil, d.stepHeader(b)
}

func (d *ITMDecoder) stepHeader(b byte) error {
	switch {
	case b == 0x00:
		d.state = itmSync
		d.zeros = 1
	case b == 0x70:
		// Overflow.
	case b&0x0F == 0x00:
		// Local timestamp: format 2 is the header alone, format 1
		// (0b11xx0000) carries continuation bytes.
		switch b & 0xC0 {
		case 0xC0:
			d.beginContinuation()
		case 0x80:
			return d.fault(b, "reserved header")
		}
	case b&0x0F == 0x04:
		// Global timestamp.
		if b&0x80 != 0 {
			d.beginContinuation()
		}
	case b&0x0B == 0x08:
		// Extension (0bCEEE1S00), e.g. a stimulus port page.
		if b&0x80 != 0 {
			d.beginContinuation()
		}
	default:
		size := 1 << (b&0x03 - 1)
		if b&0x04 != 0 {
			// Hardware source.
			d.state = itmSkip
			d.remaining = size
			return nil
		}
		d.state = itmSource
		d.remaining = size
		d.port = uint32(b >> 3)
		d.payload = make([]byte, 0, size)
	}
	return nil
}

func (d *ITMDecoder) stepSync(b byte) error {
	switch b {
	case 0x00:
		d.zeros++
		return nil
	case 0x80:
		if d.zeros < itmSyncZeros {
			return d.fault(b, fmt.Sprintf("synchronization packet with %d zero bytes", d.zeros))
		}
		d.state = itmHeader
		return nil
	default:
		return d.fault(b, "malformed synchronization packet")
	}
}

func (d *ITMDecoder) beginContinuation() {
	d.state = itmContinue
	d.run = 0
}

func (d *ITMDecoder) stepContinue(b byte) error {
	d.run++
	if b&0x80 == 0 {
		d.state = itmHeader
		return nil
	}
	if d.run >= itmMaxContinuation {
		return d.fault(b, "continuation run too long")
	}
	return nil
}

func (d *ITMDecoder) fault(b byte, reason string) error {
	d.state = itmHeader
	return &DecoderFaultError{Format: "swo", Offset: d.offset, Byte: b, Reason: reason}
}
