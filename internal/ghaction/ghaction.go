package ghaction

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sethvargo/go-githubactions"
)

const (
	outputDelimiter = "EOF_IDEA_CHECK"

	// maxIdeaPathLen bounds inputs that are tried as file paths.
	maxIdeaPathLen = 260

	defaultThreshold = 70
)

// Inputs are the action inputs as exposed by the runner (INPUT_*).
type Inputs struct {
	Idea        string
	Depth       string
	GitHubToken string
	Threshold   int
}

// ReadInputs reads the action inputs through getenv. An unparsable
// threshold falls back to the default and is reported as a warning.
func ReadInputs(getenv func(string) string) (Inputs, []string) {
	var warnings []string

	action := githubactions.New(githubactions.WithGetenv(getenv))
	in := Inputs{
		Idea:        action.GetInput("idea"),
		Depth:       strings.ToLower(action.GetInput("depth")),
		GitHubToken: action.GetInput("github_token"),
		Threshold:   defaultThreshold,
	}
	if in.Depth == "" {
		in.Depth = "quick"
	}

	if raw := action.GetInput("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid threshold %q, using %d", raw, defaultThreshold))
		} else {
			in.Threshold = n
		}
	}
	return in, warnings
}

// ResolveIdea returns the idea text. Short single-line input naming an
// existing file is replaced by that file's trimmed content; path is set
// when that happened.
func ResolveIdea(raw string) (text, path string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) >= maxIdeaPathLen || strings.Contains(raw, "\n") {
		return raw, "", nil
	}

	info, statErr := os.Stat(raw)
	if statErr != nil || !info.Mode().IsRegular() {
		return raw, "", nil
	}

	data, err := os.ReadFile(raw)
	if err != nil {
		return "", raw, fmt.Errorf("read idea file %s: %w", raw, err)
	}
	return strings.TrimSpace(string(data)), raw, nil
}

// Writer publishes step outputs. With a GITHUB_OUTPUT file it appends
// heredoc entries under a fixed delimiter that downstream steps match on;
// otherwise it prints legacy set-output commands.
type Writer struct {
	path   string
	action *githubactions.Action
}

// NewWriter creates a writer for the given output file (may be empty).
func NewWriter(path string, out io.Writer) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{
		path: path,
		action: githubactions.New(
			githubactions.WithWriter(out),
			githubactions.WithGetenv(func(string) string { return "" }),
		),
	}
}

// WriterFromEnv uses $GITHUB_OUTPUT.
func WriterFromEnv(out io.Writer) *Writer {
	return NewWriter(os.Getenv("GITHUB_OUTPUT"), out)
}

// SetOutput writes a single name/value pair. Values may span lines.
func (w *Writer) SetOutput(name, value string) error {
	if w.path == "" {
		w.action.SetOutput(name, value)
		return nil
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, outputDelimiter, value, outputDelimiter); err != nil {
		return fmt.Errorf("write output %s: %w", name, err)
	}
	return nil
}

// Error prints an error workflow command.
func Error(w io.Writer, msg string) {
	annotate(w).Errorf("%s", msg)
}

// Warning prints a warning workflow command.
func Warning(w io.Writer, msg string) {
	annotate(w).Warningf("%s", msg)
}

// Notice prints a notice workflow command.
func Notice(w io.Writer, msg string) {
	annotate(w).Noticef("%s", msg)
}

func annotate(w io.Writer) *githubactions.Action {
	return githubactions.New(githubactions.WithWriter(w))
}
