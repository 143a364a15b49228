package kfmt

import "io"

// ringBufferSize is the number of characters the early output buffer keeps;
// enough for a full 80x25 text-mode screen. It must be a power of 2.
const ringBufferSize = 2048

// defaultAttr is the attribute of text written with the default colors.
var defaultAttr = AttributeByte(DefaultBackground, DefaultForeground)

// ringBuffer captures console output produced before the console exists.
// Every character is stored with the attribute that was active when it was
// written so that colored output keeps its colors once replayed. When full,
// the oldest characters are overwritten.
//
// Attributes are stored XORed with defaultAttr so that the zero value of a
// ringBuffer writes in the default colors.
type ringBuffer struct {
	chars [ringBufferSize]byte
	attrs [ringBufferSize]uint8

	// attr is applied to subsequent writes.
	attr uint8

	rIndex, wIndex int
}

// SetColor implements ColorWriter.
func (rb *ringBuffer) SetColor(bg, fg Color) {
	rb.attr = AttributeByte(bg, fg) ^ defaultAttr
}

// Write implements io.Writer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.chars[rb.wIndex] = b
		rb.attrs[rb.wIndex] = rb.attr
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Len returns the number of buffered characters.
func (rb *ringBuffer) Len() int {
	return (rb.wIndex - rb.rIndex) & (ringBufferSize - 1)
}

// WriteTo drains the buffer into w, one write per run of characters sharing
// an attribute. If w is a ColorWriter, SetColor is called before each run
// whose colors differ from the previous one and the default colors are
// restored at the end.
func (rb *ringBuffer) WriteTo(w io.Writer) (int64, error) {
	cw, color := w.(ColorWriter)
	var (
		written    int64
		activeAttr uint8
	)

	for rb.rIndex != rb.wIndex {
		attr := rb.attrs[rb.rIndex]

		// Runs stop at the end of the backing array.
		end := rb.rIndex + 1
		for end < ringBufferSize && end != rb.wIndex && rb.attrs[end] == attr {
			end++
		}

		if color && attr != activeAttr {
			a := attr ^ defaultAttr
			cw.SetColor(Color(a>>4), Color(a&0xf))
			activeAttr = attr
		}

		n, err := w.Write(rb.chars[rb.rIndex:end])
		written += int64(n)
		rb.rIndex = end & (ringBufferSize - 1)
		if err != nil {
			return written, err
		}
	}

	if color && activeAttr != 0 {
		cw.SetColor(DefaultBackground, DefaultForeground)
	}

	return written, nil
}
