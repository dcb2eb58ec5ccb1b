package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const shellHistorySize = 500

// lineEditor reads shell lines with readline on a terminal and falls back
// to a plain scanner when stdin is piped.
type lineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
	out     io.Writer
}

func newLineEditor(historyFile string, out io.Writer) *lineEditor {
	if !term.IsTerminal(int(os.Stdin.Fd())) || os.Getenv("INSIDE_EMACS") != "" {
		return &lineEditor{scanner: bufio.NewScanner(os.Stdin), out: out}
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyFile,
		HistoryLimit:           shellHistorySize,
		DisableAutoSaveHistory: true,
		AutoComplete:           shellCompleter(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline unavailable (%v), using basic input\n", err)

		return &lineEditor{scanner: bufio.NewScanner(os.Stdin), out: out}
	}

	return &lineEditor{rl: rl, out: out}
}

// ReadLine returns io.EOF on Ctrl-D, Ctrl-C or end of piped input.
func (le *lineEditor) ReadLine(prompt string) (string, error) {
	if le.rl == nil {
		fmt.Fprint(le.out, prompt)
		if !le.scanner.Scan() {
			if err := le.scanner.Err(); err != nil {
				return "", err
			}

			return "", io.EOF
		}

		return le.scanner.Text(), nil
	}

	le.rl.SetPrompt(prompt)
	line, err := le.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}

		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}

	return line, nil
}

func (le *lineEditor) Close() error {
	if le.rl != nil {
		return le.rl.Close()
	}

	return nil
}

func shellCompleter() *readline.PrefixCompleter {
	items := make([]*readline.PrefixCompleter, 0, len(shellBuiltins)+len(shellVerbs))
	for _, name := range shellBuiltins {
		items = append(items, readline.PcItem(name))
	}
	for _, name := range shellVerbs {
		items = append(items, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(items...)
}
