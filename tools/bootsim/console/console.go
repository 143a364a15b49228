// Package console renders the kernel's colored text output on a host
// terminal. It implements kfmt.ColorWriter.
package console

import (
	"bootos/kernel/kfmt"
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ansiColor maps the VGA palette onto the 16 ANSI terminal colors.
var ansiColor = [16]lipgloss.Color{
	kfmt.Black:        "0",
	kfmt.Blue:         "4",
	kfmt.Green:        "2",
	kfmt.Cyan:         "6",
	kfmt.Red:          "1",
	kfmt.Magenta:      "5",
	kfmt.Brown:        "3",
	kfmt.LightGrey:    "7",
	kfmt.DarkGrey:     "8",
	kfmt.LightBlue:    "12",
	kfmt.LightGreen:   "10",
	kfmt.LightCyan:    "14",
	kfmt.LightRed:     "9",
	kfmt.LightMagenta: "13",
	kfmt.LightBrown:   "11",
	kfmt.White:        "15",
}

// Run is a contiguous piece of output written with the same colors.
type Run struct {
	Bg, Fg kfmt.Color
	Text   string
}

// Console is a colored text console.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
	bg, fg   kfmt.Color

	transcript bytes.Buffer
	runs       []Run
	clears     int
}

// New returns a console that renders to out.
func New(out io.Writer) *Console {
	return &Console{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		bg:       kfmt.DefaultBackground,
		fg:       kfmt.DefaultForeground,
	}
}

// SetColor implements kfmt.ColorWriter.
func (c *Console) SetColor(bg, fg kfmt.Color) {
	c.mu.Lock()
	c.bg, c.fg = bg&0xf, fg&0xf
	c.mu.Unlock()
}

// Write implements io.Writer. Each line is styled separately so that
// lipgloss does not pad multi-line output into a block.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(string(p))

	style := c.style()
	lines := strings.SplitAfter(string(p), "\n")
	for _, line := range lines {
		text := strings.TrimSuffix(line, "\n")
		if text != "" {
			if _, err := io.WriteString(c.out, style.Render(text)); err != nil {
				return 0, err
			}
		}
		if len(text) != len(line) {
			if _, err := io.WriteString(c.out, "\n"); err != nil {
				return 0, err
			}
		}
	}

	return len(p), nil
}

// Clear wipes the screen and the transcript.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transcript.Reset()
	c.runs = nil
	c.clears++

	if !c.plain() {
		io.WriteString(c.out, "\x1b[2J\x1b[H")
	}
}

// Transcript returns the plain text written since the last Clear.
func (c *Console) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.String()
}

// Runs returns the output written since the last Clear grouped by color.
func (c *Console) Runs() []Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Run(nil), c.runs...)
}

// Clears returns the number of times the console was cleared.
func (c *Console) Clears() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

func (c *Console) record(text string) {
	c.transcript.WriteString(text)

	if n := len(c.runs); n > 0 && c.runs[n-1].Bg == c.bg && c.runs[n-1].Fg == c.fg {
		c.runs[n-1].Text += text
		return
	}
	c.runs = append(c.runs, Run{Bg: c.bg, Fg: c.fg, Text: text})
}

func (c *Console) style() lipgloss.Style {
	style := c.renderer.NewStyle()
	if c.fg != kfmt.DefaultForeground {
		style = style.Foreground(ansiColor[c.fg])
	}
	if c.bg != kfmt.DefaultBackground {
		style = style.Background(ansiColor[c.bg])
	}
	return style
}

// plain returns true if the renderer emits no escape sequences.
func (c *Console) plain() bool {
	return c.renderer.NewStyle().Foreground(ansiColor[kfmt.Red]).Render("x") == "x"
}
