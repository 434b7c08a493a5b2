// Package manager orchestrates the connection lifecycle: the creation
// wizard, reconnects, forget, and confirmation-gated deletes.
package manager

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter collects user input for wizard steps. The manager never performs
// terminal I/O directly; hosts embed their own implementation.
type Prompter interface {
	// GetString prompts for a free-form value. Empty return means the user
	// supplied nothing.
	GetString(prompt string) (string, error)
	// GetSecret prompts for a value that must not echo.
	GetSecret(prompt string) (string, error)
	// GetChoice prompts for one of the listed options. Empty or unknown
	// return falls back to the caller's default.
	GetChoice(prompt string, options []string) (string, error)
	// Confirm asks a yes/no question.
	Confirm(message string) bool
}

// TerminalPrompter reads answers from stdin, with no-echo secret entry.
type TerminalPrompter struct {
	reader *bufio.Reader
}

// NewTerminalPrompter builds a prompter over stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{reader: bufio.NewReader(os.Stdin)}
}

// GetString reads one trimmed line.
func (p *TerminalPrompter) GetString(prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetSecret reads a line without echoing when stdin is a terminal.
func (p *TerminalPrompter) GetSecret(prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetChoice displays the options and reads a selection by number or name.
func (p *TerminalPrompter) GetChoice(prompt string, options []string) (string, error) {
	fmt.Printf("%s:\n", prompt)
	for i, option := range options {
		fmt.Printf("  %d) %s\n", i+1, option)
	}
	answer, err := p.GetString("Selection")
	if err != nil {
		return "", err
	}
	for i, option := range options {
		if answer == option || answer == fmt.Sprintf("%d", i+1) {
			return option, nil
		}
	}
	return "", nil
}

// Confirm asks a yes/no question; only an explicit yes proceeds.
func (p *TerminalPrompter) Confirm(message string) bool {
	answer, err := p.GetString(fmt.Sprintf("%s [y/N]", message))
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
