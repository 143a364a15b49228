package kfmt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRingBufferDrain(t *testing.T) {
	const line = "kernel in memory used:  41 KB\n"

	specs := []struct {
		start  int
		writes int
		exp    string
	}{
		// empty
		{0, 0, ""},
		{0, 1, line},
		// wraps around the end of the backing array
		{ringBufferSize - 4, 1, line},
		// overflows: only the newest ringBufferSize-1 characters survive
		{0, ringBufferSize/len(line) + 8, strings.Repeat(line, ringBufferSize/len(line)+8)[(ringBufferSize/len(line)+8)*len(line)-(ringBufferSize-1):]},
	}

	for specIndex, spec := range specs {
		var (
			rb  ringBuffer
			buf bytes.Buffer
		)
		rb.rIndex, rb.wIndex = spec.start, spec.start

		for i := 0; i < spec.writes; i++ {
			if n, err := rb.Write([]byte(line)); err != nil || n != len(line) {
				t.Fatalf("[spec %d] expected to write %d bytes; wrote %d (err: %v)", specIndex, len(line), n, err)
			}
		}

		if got, exp := rb.Len(), len(spec.exp); got != exp {
			t.Errorf("[spec %d] expected %d buffered characters; got %d", specIndex, exp, got)
		}

		n, err := rb.WriteTo(&buf)
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected to drain %q; got %q", specIndex, spec.exp, got)
		}

		if n != int64(len(spec.exp)) {
			t.Errorf("[spec %d] expected WriteTo to report %d bytes; got %d", specIndex, len(spec.exp), n)
		}

		if rb.Len() != 0 {
			t.Errorf("[spec %d] expected buffer to be empty after draining", specIndex)
		}
	}
}

func TestRingBufferReplaysColors(t *testing.T) {
	specs := []struct {
		start int
	}{
		{0},
		// the banner straddles the end of the backing array
		{ringBufferSize - 8},
	}

	for specIndex, spec := range specs {
		var rb ringBuffer
		rb.rIndex, rb.wIndex = spec.start, spec.start

		ColorFprintf(&rb, Black, Green, "Hello, %s!\n", "OS kernel")
		Fprintf(&rb, "[boot] step %s\n", "gdt")
		ColorFprintf(&rb, Black, LightBrown, "warning: unexpected multiboot magic 0x%8X\n", uint32(0x1BADB002))

		sink := &mockColorSink{bg: DefaultBackground, fg: DefaultForeground}
		if _, err := rb.WriteTo(sink); err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}

		exp := []colorEvent{
			{Black, Green, "Hello, OS kernel!\n"},
			{DefaultBackground, DefaultForeground, "[boot] step gdt\n"},
			{Black, LightBrown, "warning: unexpected multiboot magic 0x1BADB002\n"},
		}

		if len(sink.events) != len(exp) {
			t.Fatalf("[spec %d] expected %d color runs; got %+v", specIndex, len(exp), sink.events)
		}

		for i, ev := range exp {
			if sink.events[i] != ev {
				t.Errorf("[spec %d] expected run %d to be %+v; got %+v", specIndex, i, ev, sink.events[i])
			}
		}

		if sink.bg != DefaultBackground || sink.fg != DefaultForeground {
			t.Errorf("[spec %d] expected default colors to be restored; got bg=%s fg=%s", specIndex, sink.bg, sink.fg)
		}
	}
}

func TestRingBufferWriteError(t *testing.T) {
	var rb ringBuffer
	rb.Write([]byte("lost"))

	expErr := errors.New("write failed")
	if _, err := rb.WriteTo(writerThatAlwaysErrors{expErr}); err != expErr {
		t.Fatalf("expected error %v; got %v", expErr, err)
	}
}

func TestSetOutputSinkReplaysEarlyColors(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	earlyPrintBuffer = ringBuffer{}
	SetOutputSink(nil)
	Printf("[boot] step %s\n", "debug")
	ColorPrintf(Black, Red, "frames: %d\n", 8076)

	sink := &mockColorSink{bg: DefaultBackground, fg: DefaultForeground}
	SetOutputSink(sink)
	Printf("after")

	exp := []colorEvent{
		{DefaultBackground, DefaultForeground, "[boot] step debug\n"},
		{Black, Red, "frames: 8076\n"},
		{DefaultBackground, DefaultForeground, "after"},
	}

	if len(sink.events) != len(exp) {
		t.Fatalf("expected %d color runs; got %+v", len(exp), sink.events)
	}

	for i, ev := range exp {
		if sink.events[i] != ev {
			t.Errorf("expected run %d to be %+v; got %+v", i, ev, sink.events[i])
		}
	}
}

func TestSetOutputSinkReplaysToPlainSink(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	earlyPrintBuffer = ringBuffer{}
	SetOutputSink(nil)
	ColorPrintf(Black, Green, "Hello, %s!\n", "OS kernel")
	Printf("plain")

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp, got := "Hello, OS kernel!\nplain", buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}
