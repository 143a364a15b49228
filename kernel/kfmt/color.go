package kfmt

import "io"

// Color is one of the 16 VGA text-mode colors.
type Color uint8

// The VGA text-mode palette in attribute order.
const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	DarkGrey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

const (
	// DefaultBackground and DefaultForeground are restored after each
	// call to ColorPrintf.
	DefaultBackground = Black
	DefaultForeground = LightGrey
)

// ColorWriter is implemented by output sinks that can change the colors used
// for subsequent writes.
type ColorWriter interface {
	io.Writer

	// SetColor selects the background and foreground color for all
	// following writes.
	SetColor(bg, fg Color)
}

// ColorPrintf behaves like Printf but renders its output using the supplied
// background and foreground colors. Sinks that do not implement ColorWriter
// receive the plain text. Before a sink is set, the colors are kept in the
// early ring buffer along with the text.
func ColorPrintf(bg, fg Color, format string, args ...interface{}) {
	ColorFprintf(outputSink, bg, fg, format, args...)
}

// ColorFprintf behaves like ColorPrintf but writes to w. A nil w selects the
// early ring buffer.
func ColorFprintf(w io.Writer, bg, fg Color, format string, args ...interface{}) {
	if w == nil {
		w = &earlyPrintBuffer
	}

	cw, ok := w.(ColorWriter)
	if !ok {
		Fprintf(w, format, args...)
		return
	}

	cw.SetColor(bg, fg)
	Fprintf(cw, format, args...)
	cw.SetColor(DefaultBackground, DefaultForeground)
}

// AttributeByte returns the VGA text-mode attribute byte for a color pair.
func AttributeByte(bg, fg Color) uint8 {
	return uint8(bg&0xf)<<4 | uint8(fg&0xf)
}

// String implements fmt.Stringer for Color.
func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case Blue:
		return "blue"
	case Green:
		return "green"
	case Cyan:
		return "cyan"
	case Red:
		return "red"
	case Magenta:
		return "magenta"
	case Brown:
		return "brown"
	case LightGrey:
		return "light-grey"
	case DarkGrey:
		return "dark-grey"
	case LightBlue:
		return "light-blue"
	case LightGreen:
		return "light-green"
	case LightCyan:
		return "light-cyan"
	case LightRed:
		return "light-red"
	case LightMagenta:
		return "light-magenta"
	case LightBrown:
		return "light-brown"
	case White:
		return "white"
	default:
		return "unknown"
	}
}
