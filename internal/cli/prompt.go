package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

var errNotInteractive = errors.New("stdin is not a terminal")

// stdinIsTerminal reports whether prompts can be answered.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptPassword reads a secret without echo.
func promptPassword(label string) (string, error) {
	if !stdinIsTerminal() {
		return "", errNotInteractive
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// prompter asks questions on out and reads answers from in.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line returns the answer, or def when the answer is empty.
func (p *prompter) line(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, _ := p.in.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// number keeps asking until the answer is a positive integer.
func (p *prompter) number(label string, def int64) int64 {
	for {
		s := p.line(label, strconv.FormatInt(def, 10))
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			return v
		}
		fmt.Fprintln(p.out, "  Please enter a positive number.")
	}
}

// yesNo returns def on an empty answer.
func (p *prompter) yesNo(label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s [%s]: ", label, hint)
	input, err := p.in.ReadString('\n')
	if err != nil && input == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

// RetryAction is the answer to the failed-files prompt.
type RetryAction int

const (
	RetryNone RetryAction = iota
	RetryFailed
	RetryAbort
)

// promptRetryFailed asks what to do when some files could not be fetched.
func promptRetryFailed(p *prompter, failed []string) RetryAction {
	fmt.Fprintf(p.out, "\n%d file(s) failed:\n", len(failed))
	for _, name := range failed {
		fmt.Fprintf(p.out, "  - %s\n", name)
	}
	fmt.Fprintln(p.out, "What would you like to do?")
	fmt.Fprintln(p.out, "  1. Retry the failed files")
	fmt.Fprintln(p.out, "  2. Continue with the files that arrived")
	fmt.Fprintln(p.out, "  3. Abort without saving")
	for {
		fmt.Fprint(p.out, "Choose [1-3]: ")
		input, err := p.in.ReadString('\n')
		if err != nil && strings.TrimSpace(input) == "" {
			return RetryNone
		}
		switch strings.TrimSpace(input) {
		case "1":
			return RetryFailed
		case "2":
			return RetryNone
		case "3":
			return RetryAbort
		}
		fmt.Fprintln(p.out, "Invalid choice, please try again.")
	}
}
