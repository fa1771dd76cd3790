// Package commands provides the cobra commands of the oasgate CLI.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"
)

// Output format constants
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// StdinFilePath is the special file path used to indicate reading from stdin.
const StdinFilePath = "-"

// ExitError ends the command with a non-zero exit code without printing
// an error message; the command has already reported the outcome.
type ExitError struct {
	Code int
}

// Error returns a human-readable error message.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ValidateOutputFormat validates an output format and returns an error if invalid.
func ValidateOutputFormat(format string) error {
	if format != FormatText && format != FormatJSON && format != FormatYAML {
		return fmt.Errorf("invalid format '%s'. Valid formats: %s, %s, %s", format, FormatText, FormatJSON, FormatYAML)
	}
	return nil
}

// OutputStructured writes data to w in the specified format (json or yaml).
func OutputStructured(w io.Writer, data any, format string) error {
	var bytes []byte
	var err error

	switch format {
	case FormatJSON:
		bytes, err = json.MarshalIndent(data, "", "  ")
	case FormatYAML:
		bytes, err = yaml.Marshal(data)
	default:
		return fmt.Errorf("invalid format for structured output: %s", format)
	}

	if err != nil {
		return fmt.Errorf("marshaling to %s: %w", format, err)
	}

	Writef(w, "%s\n", bytes)
	return nil
}

// Writef writes formatted output to the writer.
// If the write fails, it logs to stderr (useful for debugging).
func Writef(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write error: %v\n", err)
	}
}

// readInput returns the contents of path, or of stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == StdinFilePath {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// RenderTable renders rows under headers as fixed-width columns.
// In quiet mode, headers are omitted and rows are tab-separated for piping.
func RenderTable(w io.Writer, headers []string, rows [][]string, quiet bool) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	sep := "  "
	if quiet {
		sep = "\t"
	} else {
		writeRow(w, headers, widths, sep)
	}
	for _, row := range rows {
		if quiet {
			Writef(w, "%s\n", strings.Join(row, sep))
			continue
		}
		writeRow(w, row, widths, sep)
	}
}

func writeRow(w io.Writer, cells []string, widths []int, sep string) {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(sep)
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}
	Writef(w, "%s\n", b.String())
}
