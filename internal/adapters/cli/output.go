package cli

import (
	"fmt"
	"io"
	"os"
)

// Output prints command results, coloring them when out is a terminal.
type Output struct {
	out    io.Writer
	err    io.Writer
	colors bool
}

func NewOutput(out, err io.Writer) *Output {
	return &Output{
		out:    out,
		err:    err,
		colors: isTerminal(out),
	}
}

func (o *Output) DisableColors() {
	o.colors = false
}

func (o *Output) paint(code, text string) string {
	if !o.colors {
		return text
	}
	return "\033[" + code + "m" + text + "\033[0m"
}

func (o *Output) Green(text string) string  { return o.paint("32", text) }
func (o *Output) Yellow(text string) string { return o.paint("33", text) }
func (o *Output) Red(text string) string    { return o.paint("31", text) }
func (o *Output) Gray(text string) string   { return o.paint("90", text) }

func (o *Output) Success(msg string, args ...any) {
	fmt.Fprintf(o.out, "  %s%s\n", o.Green("✓ "), fmt.Sprintf(msg, args...))
}

func (o *Output) Warning(msg string, args ...any) {
	fmt.Fprintf(o.out, "  %s%s\n", o.Yellow("⚠ "), fmt.Sprintf(msg, args...))
}

func (o *Output) Error(msg string, args ...any) {
	fmt.Fprintf(o.err, "  %s%s\n", o.Red("✗ "), fmt.Sprintf(msg, args...))
}

// Raw writes s unchanged, used for rendered documents.
func (o *Output) Raw(s string) {
	_, _ = io.WriteString(o.out, s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == os.ModeCharDevice
}
