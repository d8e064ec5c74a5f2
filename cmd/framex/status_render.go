package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
)

// statusStyles maps each kind to its tag text and terminal colour.
var statusStyles = map[statusKind]struct {
	tag   string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// renderStatusLine formats "  Label:  [TAG] message" for doctor output; only
// the tag is coloured.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	tag := "[" + style.tag + "]"
	if colorize {
		tag = style.color + tag + ansiReset
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%-*s %s", statusIndent, statusLabelWidth, label+":", tag)
	if message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	return b.String()
}

func printSection(out io.Writer, title string, colorize bool) {
	header := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(header))
	if colorize {
		header, rule = ansiBlue+header+ansiReset, ansiBlue+rule+ansiReset
	}
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, rule)
}

// shouldColorize reports whether writer is a terminal and NO_COLOR is unset.
func shouldColorize(writer io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
