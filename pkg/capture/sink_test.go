package capture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drone-os/drone/pkg/config"
)

func bufferSink(name string) (*Sink, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSink(name, &buf), &buf
}

func TestSinkTableRoutesByPort(t *testing.T) {
	all, allBuf := bufferSink("all")
	three, threeBuf := bufferSink("three")
	other, otherBuf := bufferSink("other")

	table, err := NewSinkTable([]Route{
		{Sink: all},
		{Ports: []uint32{1, 3}, Sink: three},
		{Ports: []uint32{4, 5}, Sink: other},
	})
	if err != nil {
		t.Fatalf("NewSinkTable: %v", err)
	}

	if err := table.Write(Record{Port: 3, Payload: []byte("msg")}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if allBuf.String() != "msg" || threeBuf.String() != "msg" {
		t.Errorf("matching sinks: all=%q three=%q", allBuf.String(), threeBuf.String())
	}
	if otherBuf.Len() != 0 {
		t.Errorf("sink excluding port 3 received %q", otherBuf.String())
	}
}

func TestSinkTablePortZero(t *testing.T) {
	all, allBuf := bufferSink("all")
	five, fiveBuf := bufferSink("five")
	table, err := NewSinkTable([]Route{{Sink: all}, {Ports: []uint32{5}, Sink: five}})
	if err != nil {
		t.Fatal(err)
	}

	if err := table.Write(Record{Port: 0, Payload: []byte("zero")}); err != nil {
		t.Fatal(err)
	}
	if allBuf.String() != "zero" {
		t.Errorf("expected all-ports sink to receive record, got %q", allBuf.String())
	}
	if fiveBuf.Len() != 0 {
		t.Errorf("port 5 sink received %q", fiveBuf.String())
	}
	if got := table.Match(0); len(got) != 1 || got[0] != all {
		t.Errorf("Match(0) = %v", got)
	}
}

func TestSinkTableRecordOrder(t *testing.T) {
	sink, buf := bufferSink("out")
	table, err := NewSinkTable([]Route{{Sink: sink}})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a", "b", "c"} {
		if err := table.Write(Record{Port: 2, Payload: []byte(p)}); err != nil {
			t.Fatal(err)
		}
	}
	if buf.String() != "abc" {
		t.Errorf("expected records in order, got %q", buf.String())
	}
}

func TestSinkTableRejectsOutOfRangePorts(t *testing.T) {
	sink, _ := bufferSink("out")
	if _, err := NewSinkTable([]Route{{Ports: []uint32{PortsCount}, Sink: sink}}); err == nil {
		t.Error("expected route with port 32 to be rejected")
	}

	table, err := NewSinkTable([]Route{{Sink: sink}})
	if err != nil {
		t.Fatal(err)
	}
	err = table.Write(Record{Port: PortsCount})
	var fault *DecoderFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected DecoderFaultError for port 32, got %v", err)
	}
	if want := "port 32 out of range (0-31)"; fault.Reason != want {
		t.Errorf("expected reason %q, got %q", want, fault.Reason)
	}

	err = table.Write(Record{Port: 300})
	if !errors.As(err, &fault) {
		t.Fatalf("expected DecoderFaultError for port 300, got %v", err)
	}
	if want := "swo log parser failure: port 300 out of range (0-31)"; err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if err := table.Write(Record{Port: PortsCount - 1, Payload: []byte("ok")}); err != nil {
		t.Errorf("port 31 rejected: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("device gone") }

func TestSinkWriteFailurePropagates(t *testing.T) {
	dead := NewSink("dead", failingWriter{})
	after, afterBuf := bufferSink("after")
	table, err := NewSinkTable([]Route{{Sink: dead}, {Sink: after}})
	if err != nil {
		t.Fatal(err)
	}

	err = table.Write(Record{Port: 0, Payload: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "dead") {
		t.Fatalf("expected error naming the sink, got %v", err)
	}
	if afterBuf.Len() != 0 {
		t.Errorf("delivery continued after a failed sink")
	}
}

func TestOpenSinkTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := OpenSinkTable([]config.LogOutput{{Ports: []uint32{2}, Path: path}})
	if err != nil {
		t.Fatalf("OpenSinkTable: %v", err)
	}
	if err := table.Write(Record{Port: 2, Payload: []byte("new\n")}); err != nil {
		t.Fatal(err)
	}
	// Each write is flushed, so the file is complete before Close.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old\nnew\n" {
		t.Errorf("expected appended output, got %q", data)
	}
	if err := table.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenSinkTableDefaultsToStdout(t *testing.T) {
	table, err := OpenSinkTable(nil)
	if err != nil {
		t.Fatal(err)
	}
	sinks := table.Match(7)
	if len(sinks) != 1 || sinks[0].Name() != "stdout" {
		t.Errorf("expected a single stdout sink, got %v", sinks)
	}
}

func TestOpenSinkTableBadPath(t *testing.T) {
	_, err := OpenSinkTable([]config.LogOutput{{Path: filepath.Join(t.TempDir(), "missing", "x.log")}})
	if err == nil {
		t.Fatal("expected error opening a sink in a missing directory")
	}
}

func TestBannerText(t *testing.T) {
	b := BannerText()
	if len(b) != 80 {
		t.Errorf("expected 80 columns, got %d", len(b))
	}
	if !strings.HasPrefix(b, "==") || !strings.Contains(b, " LOG OUTPUT ") {
		t.Errorf("unexpected banner %q", b)
	}
	left := strings.Index(b, " LOG OUTPUT ")
	right := len(b) - left - len(" LOG OUTPUT ")
	if left != right {
		t.Errorf("banner not centered: %d/%d", left, right)
	}
}
