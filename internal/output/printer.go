package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Printer writes evaluator progress and external command output to a single
// stream, with a blank line separating command blocks from app messages.
// The evaluator runs unattended for hours and its output is routinely
// redirected to a log file, so everything is plain text.
type Printer struct {
	out  io.Writer
	last outputKind
}

type outputKind int

const (
	outputNone outputKind = iota
	outputApp
	outputCommand
)

func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = io.Discard
	}
	return &Printer{out: out, last: outputNone}
}

// App writes one application progress line.
func (p *Printer) App(text string) error {
	if text == "" {
		return nil
	}
	if err := p.ensureGapBeforeApp(); err != nil {
		return err
	}
	if _, err := io.WriteString(p.out, ensureTrailingNewline(text)); err != nil {
		return err
	}
	p.last = outputApp
	return nil
}

func (p *Printer) Appf(format string, args ...any) error {
	return p.App(fmt.Sprintf(format, args...))
}

// RunCommandStreaming prints the command invocation, streams its combined
// stdout+stderr as it arrives, and returns the captured output.
func (p *Printer) RunCommandStreaming(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if err := p.ensureGapBeforeCommand(); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(p.out, ensureTrailingNewline(formatCommand(name, args))); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = io.MultiWriter(p.out, &buf)
	cmd.Stderr = io.MultiWriter(p.out, &buf)

	err := cmd.Run()
	p.last = outputCommand
	return buf.Bytes(), err
}

func (p *Printer) ensureGapBeforeCommand() error {
	switch p.last {
	case outputApp, outputCommand:
		_, err := io.WriteString(p.out, "\n")
		return err
	default:
		return nil
	}
}

func (p *Printer) ensureGapBeforeApp() error {
	if p.last != outputCommand {
		return nil
	}
	_, err := io.WriteString(p.out, "\n")
	return err
}

func ensureTrailingNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

func formatCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(name))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$&|;<>*?[]{}()") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", "'\"'\"'") + "'"
}
