package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter tags every line written through it with Prefix. Lines may be
// split across any number of writes; the prefix is emitted lazily once the
// first byte of a new line arrives.
type PrefixWriter struct {
	Sink   io.Writer
	Prefix []byte

	// midLine is set while the current line has already been prefixed.
	midLine bool
}

// Write implements io.Writer. The returned count excludes injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i+1]
		}

		n, err := w.Sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}

		if line[len(line)-1] == '\n' {
			w.midLine = false
		}
		p = p[len(line):]
	}

	return written, nil
}

// SetColor forwards color selection to the wrapped sink if it implements
// ColorWriter so that colored output keeps its colors when prefixed.
func (w *PrefixWriter) SetColor(bg, fg Color) {
	if cw, ok := w.Sink.(ColorWriter); ok {
		cw.SetColor(bg, fg)
	}
}
