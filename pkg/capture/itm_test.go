package capture

import (
	"errors"
	"reflect"
	"testing"
)

// feed steps d over input and collects every record.
func feed(t *testing.T, d Decoder, input []byte) ([]Record, error) {
	t.Helper()
	var out []Record
	for _, b := range input {
		recs, err := d.Step(b)
		if err != nil {
			return out, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

var syncPacket = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x80}

func TestITMInstrumentationPackets(t *testing.T) {
	var input []byte
	input = append(input, syncPacket...)
	input = append(input,
		// port 0, 1 byte
		0x01, 'h',
		// port 3, 2 bytes
		0x1A, 'e', 'y',
		// port 31, 4 bytes
		0xFB, 'a', 'b', 'c', 'd',
	)

	got, err := feed(t, NewITMDecoder(), input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Record{
		{Port: 0, Payload: []byte("h")},
		{Port: 3, Payload: []byte("ey")},
		{Port: 31, Payload: []byte("abcd")},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestITMRecordCompletesOnLastByte(t *testing.T) {
	d := NewITMDecoder()
	for _, b := range []byte{0x0B, 'a', 'b', 'c'} {
		recs, err := d.Step(b)
		if err != nil || recs != nil {
			t.Fatalf("Step(%#x) = %v, %v; want pending", b, recs, err)
		}
	}
	recs, err := d.Step('d')
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || string(recs[0].Payload) != "abcd" || recs[0].Port != 1 {
		t.Errorf("unexpected records %v", recs)
	}
}

func TestITMSkipsNonInstrumentationPackets(t *testing.T) {
	input := []byte{
		// overflow
		0x70,
		// local timestamp, format 2
		0x30,
		// local timestamp, format 1 with continuation
		0xC0, 0x81, 0x01,
		// global timestamp 1
		0x94, 0x80, 0x80, 0x00,
		// extension with one continuation byte
		0x08 | 0x04 | 0x80, 0x7F,
		// hardware source, 1 byte
		0x05, 0xAA,
		// hardware source, 4 bytes
		0x07, 0x01, 0x02, 0x03, 0x04,
		// port 1
		0x09, 'x',
	}
	got, err := feed(t, NewITMDecoder(), input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Record{{Port: 1, Payload: []byte("x")}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestITMStimulusPageExtensions(t *testing.T) {
	for _, header := range []byte{0x08, 0x18, 0x78} {
		got, err := feed(t, NewITMDecoder(), []byte{header, 0x01, 'a'})
		if err != nil {
			t.Fatalf("header %#02x: %v", header, err)
		}
		if len(got) != 1 || got[0].Port != 0 || string(got[0].Payload) != "a" {
			t.Errorf("header %#02x: unexpected records %v", header, got)
		}
	}

	// Page extension with a continuation byte.
	got, err := feed(t, NewITMDecoder(), []byte{0x88, 0x01, 0x11, 'b'})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Record{{Port: 2, Payload: []byte("b")}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestITMFaults(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		offset int64
	}{
		{"reserved timestamp header", []byte{0x90}, 0},
		{"reserved header after record", []byte{0x01, 'a', 0xA0}, 2},
		{"short sync", []byte{0x00, 0x00, 0x80}, 2},
		{"garbage in sync", []byte{0x00, 0x00, 0x42}, 2},
		{"endless continuation", []byte{0xC0, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := feed(t, NewITMDecoder(), tt.input)
			var fault *DecoderFaultError
			if !errors.As(err, &fault) {
				t.Fatalf("expected DecoderFaultError, got %v", err)
			}
			if fault.Offset != tt.offset {
				t.Errorf("expected fault at offset %d, got %d", tt.offset, fault.Offset)
			}
		})
	}
}
