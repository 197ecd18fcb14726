package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// ASCIILogo is printed before a scrape
const ASCIILogo = `
  ┌─┐┌─┐┌┬┐  ┬ ┬┌─┐┬─┐┬  ┬┌─┐┌─┐┌┬┐
  └─┐│ ││││  ├─┤├─┤├┬┘└┐┌┘├┤ └─┐ │
  └─┘└─┘┴ ┴  ┴ ┴┴ ┴┴└─ └┘ └─┘└─┘ ┴
  resumable summer of making harvester
`

var (
	// Out receives all command output. Tests may replace it.
	Out io.Writer = os.Stdout

	quiet atomic.Bool
)

func init() {
	SetColor(term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == "")
}

// SetColor turns ANSI colors on or off for messages and tables alike
func SetColor(enabled bool) {
	if enabled {
		text.EnableColors()
	} else {
		text.DisableColors()
	}
}

// SetQuiet suppresses everything but errors and tables
func SetQuiet(enabled bool) {
	quiet.Store(enabled)
}

var (
	Cyan    = paint(text.FgCyan)
	Yellow  = paint(text.FgYellow)
	Red     = paint(text.FgRed)
	Green   = paint(text.FgGreen)
	Magenta = paint(text.FgMagenta)
	Dim     = paint(text.Faint)
)

func paint(c ...text.Color) func(string) string {
	colors := text.Colors(c)
	return func(s string) string { return colors.Sprint(s) }
}

// withDetail renders "msg: detail" when a detail is given
func withDetail(msg string, detail []interface{}) string {
	if len(detail) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, detail[0])
}

func say(line string) {
	if quiet.Load() {
		return
	}
	fmt.Fprintln(Out, line)
}

// PrintLogo prints the banner
func PrintLogo() {
	if quiet.Load() {
		return
	}
	fmt.Fprint(Out, Cyan(ASCIILogo))
}

// PrintError prints in red. Quiet mode never hides errors.
func PrintError(msg string, detail ...interface{}) {
	fmt.Fprintln(Out, Red(withDetail(msg, detail)))
}

func PrintSuccess(msg string) { say(Green(msg)) }

// PrintInfo prints a "label: value" pair
func PrintInfo(label, value string) {
	say(fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

func PrintWarning(msg string, detail ...interface{}) {
	say(Yellow(withDetail(msg, detail)))
}

func PrintHighlight(msg string) { say(Magenta(msg)) }
