// Package notebook versions Jupyter notebook files by embedding the project
// version in their filenames.
package notebook

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kokistudios/versioner/internal/version"
)

var versionPattern = regexp.MustCompile(`_v(\d+\.\d+\.\d+)\.ipynb$`)

// ParseName splits a notebook filename into its base name and embedded
// version. The version is empty when the filename carries none.
func ParseName(filename string) (base, ver string) {
	if m := versionPattern.FindStringSubmatchIndex(filename); m != nil {
		return filename[:m[0]], filename[m[2]:m[3]]
	}
	if strings.HasSuffix(filename, ".ipynb") {
		return strings.TrimSuffix(filename, ".ipynb"), ""
	}
	// Not a notebook name; discovery should never hand us one of these.
	return filename, ""
}

// VersionedName builds a versioned notebook filename. The version text is
// interpolated verbatim, without validation.
func VersionedName(base, ver string) string {
	return fmt.Sprintf("%s_v%s.ipynb", base, ver)
}

// Find recursively lists every .ipynb file under root.
func Find(root string) ([]string, error) {
	var notebooks []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".ipynb") {
			notebooks = append(notebooks, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot search for notebooks under %s: %w", root, err)
	}
	return notebooks, nil
}

// Result describes the outcome of versioning a single notebook.
type Result struct {
	Renamed bool
	NewPath string // empty unless the file was (or would be) renamed
	Message string
}

// Apply renames a single notebook to carry the target version.
//
// A notebook already at the target version is a no-op. A naming collision with
// an existing file is reported in the Result rather than returned as an error,
// so batch runs keep going. With dryRun set, nothing on disk changes and the
// message describes the hypothetical rename.
func Apply(path, target string, dryRun bool) Result {
	name := filepath.Base(path)
	base, current := ParseName(name)

	if current == target {
		return Result{Message: fmt.Sprintf("Already at version %s: %s", target, name)}
	}

	newName := VersionedName(base, target)
	newPath := filepath.Join(filepath.Dir(path), newName)

	if newPath != path {
		if _, err := os.Stat(newPath); err == nil {
			return Result{Message: fmt.Sprintf("Error: Target file already exists: %s", newName)}
		}
	}

	action := "Renamed"
	if dryRun {
		action = "Would rename"
	}
	var message string
	if current != "" {
		message = fmt.Sprintf("%s: %s -> %s (from v%s)", action, name, newName, current)
	} else {
		message = fmt.Sprintf("%s: %s -> %s (added version)", action, name, newName)
	}

	if !dryRun && newPath != path {
		if err := os.Rename(path, newPath); err != nil {
			return Result{Message: fmt.Sprintf("Error: failed to rename %s: %v", name, err)}
		}
	}

	return Result{Renamed: true, NewPath: newPath, Message: message}
}

// ApplyAll versions every notebook under root. When target is empty the
// project version is resolved from root; a resolver failure aborts the whole
// run since no useful work can proceed. Per-file problems never do.
func ApplyAll(root, target string, dryRun bool) ([]Result, error) {
	if target == "" {
		v, err := version.Project(root)
		if err != nil {
			return nil, err
		}
		target = v
	}

	notebooks, err := Find(root)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(notebooks))
	for _, nb := range notebooks {
		results = append(results, Apply(nb, target, dryRun))
	}
	return results, nil
}

// Summary aggregates a batch of results.
type Summary struct {
	Processed int
	Renamed   int
	Skipped   int
}

// Summarize counts processed, renamed, and skipped notebooks. Skipped covers
// every unrenamed file, whether already current or collided.
func Summarize(results []Result) Summary {
	s := Summary{Processed: len(results)}
	for _, r := range results {
		if r.Renamed {
			s.Renamed++
		}
	}
	s.Skipped = s.Processed - s.Renamed
	return s
}
