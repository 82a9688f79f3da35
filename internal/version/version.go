// Package version resolves the canonical project version from a __version__ file.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the well-known name of the version source file.
const FileName = "__version__"

// NotFoundError is returned when no parsable version source can be located.
type NotFoundError struct {
	// Searched holds every candidate path that was tried, in order.
	// Empty when the file was found but could not be parsed.
	Searched []string
	// Reason describes a parse failure; empty for a search failure.
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	var b strings.Builder
	b.WriteString("could not find " + FileName + " file. Searched locations:")
	for _, p := range e.Searched {
		b.WriteString("\n  - " + p)
	}
	return b.String()
}

// FindVersionFile locates the __version__ file for a project.
//
// Search order:
//  1. <start>/__version__
//  2. <start>/src/__version__
//  3. <start>/src/<package>/__version__ for every non-hidden package directory
//  4. <start>/../__version__
func FindVersionFile(start string) (string, error) {
	candidates := []string{
		filepath.Join(start, FileName),
		filepath.Join(start, "src", FileName),
	}

	srcDir := filepath.Join(start, "src")
	if entries, err := os.ReadDir(srcDir); err == nil {
		// ReadDir sorts by name, so candidate order is deterministic.
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				candidates = append(candidates, filepath.Join(srcDir, e.Name(), FileName))
			}
		}
	}

	candidates = append(candidates, filepath.Join(start, "..", FileName))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	return "", &NotFoundError{Searched: candidates}
}

// Fallback patterns for files the assignment scanner cannot handle.
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`__version__\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`__version__\s*:\s*str\s*=\s*["']([^"']+)["']`),
}

// ParseVersionFile extracts the version string from a __version__ file.
//
// The file is expected to contain a single assignment binding __version__ to a
// string literal, with or without a type annotation:
//
//	__version__ = "0.1.0"
//	__version__: str = "0.1.0"
//
// A line-oriented structural parse is attempted first; if no assignment is
// recognized, anchored pattern matches are tried before giving up.
func ParseVersionFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read version file %s: %w", path, err)
	}
	content := string(data)

	if v, ok := scanAssignments(content); ok {
		return v, nil
	}

	for _, re := range fallbackPatterns {
		if m := re.FindStringSubmatch(content); m != nil {
			return m[1], nil
		}
	}

	return "", &NotFoundError{
		Reason: fmt.Sprintf("could not parse version from %s. Expected format: __version__ = \"x.y.z\"", path),
	}
}

// Project resolves the current project version starting from the given
// directory. This is the main entry point for version lookup.
func Project(start string) (string, error) {
	path, err := FindVersionFile(start)
	if err != nil {
		return "", err
	}
	return ParseVersionFile(path)
}

// scanAssignments walks the file line by line looking for a binding of
// __version__ to a string literal.
func scanAssignments(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		name, value, ok := parseAssignment(line)
		if ok && name == "__version__" {
			return value, true
		}
	}
	return "", false
}

// parseAssignment recognizes the grammar subset
//
//	ident [: annotation] = "literal" [# comment]
//
// with single or double quotes. Anything else is rejected.
func parseAssignment(line string) (name, value string, ok bool) {
	s := strings.TrimSpace(line)

	i := 0
	for i < len(s) && (isIdentChar(s[i])) {
		i++
	}
	if i == 0 {
		return "", "", false
	}
	name = s[:i]
	s = strings.TrimSpace(s[i:])

	switch {
	case strings.HasPrefix(s, ":"):
		// Annotated form: skip the annotation up to '='.
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return "", "", false
		}
		s = strings.TrimSpace(s[eq+1:])
	case strings.HasPrefix(s, "=") && !strings.HasPrefix(s, "=="):
		s = strings.TrimSpace(s[1:])
	default:
		return "", "", false
	}

	if len(s) < 2 {
		return "", "", false
	}
	quote := s[0]
	if quote != '"' && quote != '\'' {
		return "", "", false
	}
	end := strings.IndexByte(s[1:], quote)
	if end < 0 {
		return "", "", false
	}
	value = s[1 : 1+end]

	rest := strings.TrimSpace(s[2+end:])
	if rest != "" && !strings.HasPrefix(rest, "#") {
		return "", "", false
	}
	return name, value, true
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
