// Package console provides the interactive user I/O of the chat client: a
// line-editing terminal with persistent input history when stdin is a TTY,
// and a plain line reader otherwise (pipes, scripts, tests).
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/rhuss/mcpchat/pkg/config"
)

// ErrInterrupt is returned by ReadLine when the user pressed Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// Console reads user input line by line and accepts output.
type Console interface {
	io.Writer

	// ReadLine shows prompt and returns the next input line without its
	// trailing newline. It returns io.EOF at end of input and ErrInterrupt
	// on Ctrl-C.
	ReadLine(prompt string) (string, error)

	// Close releases the terminal.
	Close() error
}

// New returns a Terminal when in is a TTY and Lines otherwise.
func New(cfg config.ConsoleConfig, in *os.File, out io.Writer) (Console, error) {
	if term.IsTerminal(int(in.Fd())) {
		return NewTerminal(cfg, in, out)
	}
	return NewLines(in, out), nil
}

// Terminal is a Console backed by readline.
type Terminal struct {
	rl *readline.Instance
}

var _ Console = (*Terminal)(nil)

// NewTerminal creates a readline terminal. cfg.HistoryFile may start with
// "~/"; an empty value disables history persistence.
func NewTerminal(cfg config.ConsoleConfig, in io.ReadCloser, out io.Writer) (*Terminal, error) {
	historyFile, err := expandHome(cfg.HistoryFile)
	if err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cfg.Prompt,
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             in,
		Stdout:            out,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}
	return &Terminal{rl: rl}, nil
}

// ReadLine reads one line with editing and history.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	line, err := t.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", ErrInterrupt
	case err != nil:
		return "", err
	}
	return line, nil
}

// Write prints above the prompt without corrupting the edit line.
func (t *Terminal) Write(p []byte) (int, error) {
	return t.rl.Stdout().Write(p)
}

// Close restores the terminal and flushes history.
func (t *Terminal) Close() error {
	return t.rl.Close()
}

// Lines is a Console reading newline-delimited input from any reader.
type Lines struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer
}

var _ Console = (*Lines)(nil)

// NewLines creates a Lines console.
func NewLines(in io.Reader, out io.Writer) *Lines {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Lines{scanner: s, out: out}
}

// ReadLine writes prompt and returns the next line.
func (l *Lines) ReadLine(prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prompt != "" {
		if _, err := io.WriteString(l.out, prompt); err != nil {
			return "", err
		}
	}
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(l.scanner.Text(), "\r"), nil
}

// Write writes to the output.
func (l *Lines) Write(p []byte) (int, error) {
	return l.out.Write(p)
}

// Close is a no-op.
func (l *Lines) Close() error {
	return nil
}

func expandHome(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving history file %s: %w", path, err)
	}
	return filepath.Join(home, path[2:]), nil
}
