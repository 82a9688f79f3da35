package notebook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseName(t *testing.T) {
	cases := []struct {
		filename string
		wantBase string
		wantVer  string
	}{
		{"analysis.ipynb", "analysis", ""},
		{"analysis_v0.1.0.ipynb", "analysis", "0.1.0"},
		{"my_notebook_v1.2.3.ipynb", "my_notebook", "1.2.3"},
		{"my_v2_notebook.ipynb", "my_v2_notebook", ""},
		{"notes.txt", "notes.txt", ""},
		{"deep_v10.20.30.ipynb", "deep", "10.20.30"},
	}
	for _, tc := range cases {
		base, ver := ParseName(tc.filename)
		if base != tc.wantBase || ver != tc.wantVer {
			t.Errorf("ParseName(%q) = (%q, %q), want (%q, %q)", tc.filename, base, ver, tc.wantBase, tc.wantVer)
		}
	}
}

func TestVersionedName_RoundTrip(t *testing.T) {
	for _, base := range []string{"analysis", "my_notebook", "etl_job"} {
		for _, ver := range []string{"0.1.0", "1.2.3", "10.0.7"} {
			name := VersionedName(base, ver)
			gotBase, gotVer := ParseName(name)
			if gotBase != base || gotVer != ver {
				t.Errorf("ParseName(VersionedName(%q, %q)) = (%q, %q)", base, ver, gotBase, gotVer)
			}
		}
	}
}

func TestFind(t *testing.T) {
	tmp := t.TempDir()
	touch(t, filepath.Join(tmp, "a.ipynb"))
	touch(t, filepath.Join(tmp, "sub", "b_v0.1.0.ipynb"))
	touch(t, filepath.Join(tmp, "sub", "readme.md"))

	notebooks, err := Find(tmp)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(notebooks) != 2 {
		t.Fatalf("expected 2 notebooks, got %d: %v", len(notebooks), notebooks)
	}
}

func TestApply_AddVersion(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "analysis.ipynb")
	touch(t, path)

	r := Apply(path, "0.1.0", false)
	if !r.Renamed {
		t.Fatalf("expected rename, got: %s", r.Message)
	}
	if r.NewPath != filepath.Join(tmp, "analysis_v0.1.0.ipynb") {
		t.Errorf("unexpected new path: %s", r.NewPath)
	}
	if !strings.Contains(r.Message, "added version") {
		t.Errorf("expected 'added version' message, got: %s", r.Message)
	}
	if _, err := os.Stat(r.NewPath); err != nil {
		t.Error("renamed file does not exist")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("original file still exists after rename")
	}
}

func TestApply_ChangeVersion(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "analysis_v0.1.0.ipynb")
	touch(t, path)

	r := Apply(path, "0.2.0", false)
	if !r.Renamed {
		t.Fatalf("expected rename, got: %s", r.Message)
	}
	if !strings.Contains(r.Message, "from v0.1.0") {
		t.Errorf("expected 'from v0.1.0' message, got: %s", r.Message)
	}
}

func TestApply_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "analysis.ipynb")
	touch(t, path)

	first := Apply(path, "0.1.0", false)
	if !first.Renamed {
		t.Fatalf("first apply should rename: %s", first.Message)
	}
	second := Apply(first.NewPath, "0.1.0", false)
	if second.Renamed {
		t.Errorf("second apply should be a no-op: %s", second.Message)
	}
	if !strings.Contains(second.Message, "Already at version 0.1.0") {
		t.Errorf("expected 'already at version' message, got: %s", second.Message)
	}

	entries, _ := os.ReadDir(tmp)
	if len(entries) != 1 {
		t.Errorf("expected exactly one file after idempotent apply, got %d", len(entries))
	}
}

func TestApply_Collision(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "analysis.ipynb")
	touch(t, path)
	touch(t, filepath.Join(tmp, "analysis_v0.2.0.ipynb"))

	r := Apply(path, "0.2.0", false)
	if r.Renamed {
		t.Fatal("expected collision to block the rename")
	}
	if !strings.Contains(r.Message, "already exists") {
		t.Errorf("expected collision message, got: %s", r.Message)
	}
	// The unversioned original must be untouched.
	if _, err := os.Stat(path); err != nil {
		t.Error("original file was removed on collision")
	}
}

func TestApply_DryRun(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "analysis.ipynb")
	touch(t, path)
	before, _ := os.ReadFile(path)

	r := Apply(path, "0.1.0", true)
	if !r.Renamed {
		t.Fatalf("dry run should report the hypothetical rename: %s", r.Message)
	}
	if !strings.HasPrefix(r.Message, "Would rename") {
		t.Errorf("expected 'Would rename' message, got: %s", r.Message)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("dry run must not move the file")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("dry run must not modify file contents")
	}
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 1 {
		t.Errorf("dry run created files: %d entries", len(entries))
	}
}

func TestApplyAll_ResolvesVersion(t *testing.T) {
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, "__version__"), []byte(`__version__ = "0.3.0"`), 0644); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(tmp, "etl.ipynb"))

	results, err := ApplyAll(tmp, "", false)
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}
	if len(results) != 1 || !results[0].Renamed {
		t.Fatalf("unexpected results: %+v", results)
	}
	if _, err := os.Stat(filepath.Join(tmp, "etl_v0.3.0.ipynb")); err != nil {
		t.Error("notebook not renamed to resolved version")
	}
}

func TestApplyAll_NoVersionSource(t *testing.T) {
	tmp := t.TempDir()
	touch(t, filepath.Join(tmp, "etl.ipynb"))

	if _, err := ApplyAll(tmp, "", false); err == nil {
		t.Fatal("expected resolver failure to propagate")
	}
}

func TestApplyAll_CollisionReported(t *testing.T) {
	// a.ipynb and a_v0.1.0.ipynb both resolve to a_v0.2.0.ipynb; whichever is
	// processed first wins, the other reports a collision instead of
	// overwriting.
	tmp := t.TempDir()
	touch(t, filepath.Join(tmp, "a.ipynb"))
	touch(t, filepath.Join(tmp, "a_v0.1.0.ipynb"))
	touch(t, filepath.Join(tmp, "b.ipynb"))

	results, err := ApplyAll(tmp, "0.2.0", false)
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	var renamed, collided int
	for _, r := range results {
		if r.Renamed {
			renamed++
		}
		if strings.Contains(r.Message, "already exists") {
			collided++
		}
	}
	if renamed != 2 {
		t.Errorf("expected 2 renames (one 'a' variant plus b), got %d", renamed)
	}
	if collided != 1 {
		t.Errorf("expected 1 collision report, got %d", collided)
	}

	// Exactly one a_v0.2.0.ipynb, never an overwrite.
	if _, err := os.Stat(filepath.Join(tmp, "a_v0.2.0.ipynb")); err != nil {
		t.Error("expected a_v0.2.0.ipynb to exist")
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Renamed: true},
		{Renamed: false},
		{Renamed: false},
	}
	s := Summarize(results)
	if s.Processed != 3 || s.Renamed != 1 || s.Skipped != 2 {
		t.Errorf("Summarize() = %+v", s)
	}
}
