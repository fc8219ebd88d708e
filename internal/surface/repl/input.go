package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"callsync/internal/checklist"
)

// LineInput 行输入源 / LineInput reads one line per prompt
type LineInput interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// scanInput is the non-interactive fallback used for pipes and tests.
type scanInput struct {
	sc  *bufio.Scanner
	out io.Writer
}

// NewBasicLineInput reads lines from in without editing support.
func NewBasicLineInput(in io.Reader, out io.Writer) LineInput {
	return &scanInput{sc: bufio.NewScanner(in), out: out}
}

func (s *scanInput) ReadLine(prompt string) (string, error) {
	if s.out != nil {
		fmt.Fprint(s.out, prompt)
	}
	if s.sc.Scan() {
		return strings.TrimSuffix(s.sc.Text(), "\r"), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanInput) Close() error { return nil }

// editor wraps a readline instance with history and slash-command completion.
type editor struct {
	rl *readline.Instance
}

func newEditor(historyPath string) (*editor, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:       historyPath,
		HistorySearchFold: true,
		AutoComplete:      completer(),
		InterruptPrompt:   "^C",
	})
	if err != nil {
		return nil, fmt.Errorf("init line editor: %w", err)
	}
	return &editor{rl: rl}, nil
}

func (e *editor) ReadLine(prompt string) (string, error) {
	e.rl.SetPrompt(prompt)
	return e.rl.Readline()
}

// Stdout redraws the prompt after asynchronous output.
func (e *editor) Stdout() io.Writer { return e.rl.Stdout() }

func (e *editor) Close() error { return e.rl.Close() }

// NewLineInput 优先使用 readline，失败时退回基础输入并返回原因
// NewLineInput prefers readline and falls back to basic stdin input, returning why
func NewLineInput(historyPath string) (LineInput, error) {
	ed, err := newEditor(historyPath)
	if err != nil {
		return NewBasicLineInput(os.Stdin, os.Stdout), err
	}
	return ed, nil
}

// completer offers every slash command, and checklist ids after /check.
func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commandNames))
	for _, name := range commandNames {
		if name == "check" {
			items = append(items, readline.PcItem("/check", readline.PcItemDynamic(checklistIDs)))
			continue
		}
		items = append(items, readline.PcItem("/"+name))
	}
	return readline.NewPrefixCompleter(items...)
}

func checklistIDs(string) []string {
	defs := checklist.Definitions()
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	return ids
}
