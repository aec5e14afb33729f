// Package cli implements the terminal chat surface: a printer that renders
// runtime events and the interactive/one-shot runners that drive turns.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// text colors
var (
	cyan   = color.New(color.FgCyan).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	gray   = color.New(color.FgHiBlack).SprintfFunc()
)

// text styles
var bold = color.New(color.Bold).SprintfFunc()

// Printer renders runtime events for the terminal. With a markdown renderer
// attached, assistant answers render as markdown; otherwise they print as
// plain text.
type Printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
}

// NewPrinter creates a plain-text printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// NewTerminalPrinter creates a printer for stdout. Markdown rendering is
// enabled when stdout is a terminal.
func NewTerminalPrinter() *Printer {
	p := &Printer{out: os.Stdout}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			p.renderer = renderer
		}
	}
	return p
}

// Assistant prints an assistant reply.
func (p *Printer) Assistant(content string) {
	text := "Tux> " + content
	if p.renderer != nil {
		if rendered, err := p.renderer.Render(text); err == nil {
			fmt.Fprint(p.out, rendered)
			return
		}
	}
	fmt.Fprintf(p.out, "%s\n", text)
}

// Plain prints content verbatim, for pipe-friendly one-shot output.
func (p *Printer) Plain(content string) {
	fmt.Fprintln(p.out, content)
}

// ToolCall announces a tool invocation.
func (p *Printer) ToolCall(call tools.ToolCall) {
	fmt.Fprintf(p.out, "\n%s\n", cyan("tool call %s(%s)", bold(call.Function.Name), call.Function.Arguments))
}

// ToolResult prints a tool result, color-coded by outcome: red for errors,
// yellow for refusals and warnings, cyan otherwise.
func (p *Printer) ToolResult(_ tools.ToolCall, response string, isError bool) {
	style := cyan
	switch {
	case isError || strings.Contains(response, "[ERROR]"):
		style = red
	case strings.Contains(response, "❌") || strings.Contains(response, "⚠"):
		style = yellow
	}
	fmt.Fprintf(p.out, "%s\n", style("%s", response))
}

// Error prints a loop failure.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.out, "%s\n", red("❌ %s", err))
}

// MaxIterations warns that the turn stopped at the iteration cap.
func (p *Printer) MaxIterations(n int) {
	fmt.Fprintf(p.out, "%s\n", yellow("⚠ Stopped after %d tool iterations without a final answer.", n))
}

// Welcome prints the interactive banner.
func (p *Printer) Welcome() {
	fmt.Fprintf(p.out, "\n%s\n%s\n\n",
		green("🟢 Interactive Chat Started"),
		gray("Type your message and press ENTER. Ctrl-C or 'exit' to quit."))
}

// Goodbye prints the exit line.
func (p *Printer) Goodbye() {
	fmt.Fprintf(p.out, "\n%s\n", yellow("👋 Exiting cleanly…"))
}

// Prompt prints the input prompt without a trailing newline.
func (p *Printer) Prompt() {
	fmt.Fprint(p.out, bold("You> "))
}
