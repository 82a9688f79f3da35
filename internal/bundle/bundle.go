// Package bundle rewrites version fields inside Databricks asset bundle
// configuration files.
//
// Two documents are handled: databricks.yml (top-level "version" field) and
// resources/variables.yml (nested "variables.pkg_version.default" field).
// Edits go through yaml.Node so mapping key order and comments survive the
// rewrite.
package bundle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/versioner/internal/version"
)

// BundleFileName is the asset bundle descriptor filename.
const BundleFileName = "databricks.yml"

// VariablesFileRel is the variables descriptor path relative to the project root.
const VariablesFileRel = "resources/variables.yml"

// UpdateError is returned when a YAML document is missing, unparsable, or
// unwritable.
type UpdateError struct {
	Msg string
	Err error
}

func (e *UpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *UpdateError) Unwrap() error { return e.Err }

// FindBundleFile locates databricks.yml under root.
func FindBundleFile(root string) (string, error) {
	path := filepath.Join(root, BundleFileName)
	if _, err := os.Stat(path); err != nil {
		return "", &UpdateError{
			Msg: fmt.Sprintf("could not find %s in %s (expected location: %s)", BundleFileName, root, BundleFileName),
		}
	}
	return path, nil
}

// FindVariablesFile locates resources/variables.yml under root.
func FindVariablesFile(root string) (string, error) {
	path := filepath.Join(root, "resources", "variables.yml")
	if _, err := os.Stat(path); err != nil {
		return "", &UpdateError{
			Msg: fmt.Sprintf("could not find %s in %s (expected location: %s)", VariablesFileRel, root, VariablesFileRel),
		}
	}
	return path, nil
}

// Backup copies the document to a sibling .yml.bak path, byte for byte.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s for backup: %w", path, err)
	}
	backupPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".yml.bak"
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("cannot write backup %s: %w", backupPath, err)
	}
	return backupPath, nil
}

// Result describes the outcome of a single document update.
type Result struct {
	Updated bool
	Message string
}

// UpdateBundle sets the top-level version field in databricks.yml.
//
// An empty path searches the current directory; an empty target resolves the
// project version from the document's directory. Re-running with an already
// current version is a no-op. With backup set, a .yml.bak copy is taken before
// a real write; with dryRun set nothing on disk changes.
func UpdateBundle(path, target string, backup, dryRun bool) (Result, error) {
	if path == "" {
		p, err := FindBundleFile(".")
		if err != nil {
			return Result{}, err
		}
		path = p
	}
	if target == "" {
		v, err := version.Project(filepath.Dir(path))
		if err != nil {
			return Result{}, err
		}
		target = v
	}
	return updateField(path, filepath.Base(path), "version", []string{"version"}, target, backup, dryRun)
}

// UpdateVariables sets variables.pkg_version.default in resources/variables.yml,
// creating intermediate mappings as needed. The project version is resolved two
// levels up from the document, reflecting its deeper nesting. Otherwise behaves
// like UpdateBundle.
func UpdateVariables(path, target string, backup, dryRun bool) (Result, error) {
	if path == "" {
		p, err := FindVariablesFile(".")
		if err != nil {
			return Result{}, err
		}
		path = p
	}
	if target == "" {
		v, err := version.Project(filepath.Dir(filepath.Dir(path)))
		if err != nil {
			return Result{}, err
		}
		target = v
	}
	return updateField(path, path, "pkg_version.default", []string{"variables", "pkg_version", "default"}, target, backup, dryRun)
}

// UpdateAll attempts both document updates independently. A missing or broken
// document becomes a "Skipped" result instead of aborting the other update; a
// resolver failure propagates since neither update could proceed.
func UpdateAll(root, target string, backup, dryRun bool) ([]Result, error) {
	if target == "" {
		v, err := version.Project(root)
		if err != nil {
			return nil, err
		}
		target = v
	}

	var results []Result

	if path, err := FindBundleFile(root); err != nil {
		results = append(results, Result{Message: fmt.Sprintf("Skipped %s: %v", BundleFileName, err)})
	} else if r, err := UpdateBundle(path, target, backup, dryRun); err != nil {
		results = append(results, Result{Message: fmt.Sprintf("Skipped %s: %v", BundleFileName, err)})
	} else {
		results = append(results, r)
	}

	if path, err := FindVariablesFile(root); err != nil {
		results = append(results, Result{Message: fmt.Sprintf("Skipped %s: %v", VariablesFileRel, err)})
	} else if r, err := UpdateVariables(path, target, backup, dryRun); err != nil {
		results = append(results, Result{Message: fmt.Sprintf("Skipped %s: %v", VariablesFileRel, err)})
	} else {
		results = append(results, r)
	}

	return results, nil
}

// BundleVersion reads the current top-level version from databricks.yml.
// Returns the empty string when the field is unset.
func BundleVersion(path string) (string, error) {
	root, err := loadDocument(path)
	if err != nil {
		return "", err
	}
	return fieldValue(root, []string{"version"}), nil
}

// VariablesVersion reads variables.pkg_version.default from resources/variables.yml.
// Returns the empty string when the field is unset.
func VariablesVersion(path string) (string, error) {
	root, err := loadDocument(path)
	if err != nil {
		return "", err
	}
	return fieldValue(root, []string{"variables", "pkg_version", "default"}), nil
}

// updateField implements the shared update protocol for one document and one
// field path. displayName is how the document appears in messages.
func updateField(path, displayName, fieldName string, fieldPath []string, target string, backup, dryRun bool) (Result, error) {
	root, err := loadDocument(path)
	if err != nil {
		return Result{}, err
	}

	current := fieldValue(root, fieldPath)
	if current == target {
		return Result{Message: fmt.Sprintf("Already at version %s: %s", target, displayName)}, nil
	}

	setField(root, fieldPath, target)

	action := "Updated"
	if dryRun {
		action = "Would update"
	}
	var message string
	if current != "" {
		message = fmt.Sprintf("%s %s in %s: %s -> %s", action, fieldName, displayName, current, target)
	} else {
		message = fmt.Sprintf("%s %s in %s: (no version) -> %s", action, fieldName, displayName, target)
	}

	if !dryRun {
		if backup {
			backupPath, err := Backup(path)
			if err != nil {
				return Result{}, &UpdateError{Msg: fmt.Sprintf("failed to back up %s", path), Err: err}
			}
			message += fmt.Sprintf(" (backup: %s)", filepath.Base(backupPath))
		}
		if err := writeDocument(path, root); err != nil {
			return Result{}, err
		}
	}

	return Result{Updated: true, Message: message}, nil
}

// loadDocument parses a YAML file and returns its root mapping node. An empty
// document is treated as an empty mapping.
func loadDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &UpdateError{Msg: fmt.Sprintf("failed to read YAML file %s", path), Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &UpdateError{Msg: fmt.Sprintf("failed to parse YAML file %s", path), Err: err}
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, &UpdateError{Msg: fmt.Sprintf("failed to parse YAML file %s: document root is not a mapping", path)}
	}
	return root, nil
}

// writeDocument serializes the mapping back in block style, two-space indent.
func writeDocument(path string, root *yaml.Node) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return &UpdateError{Msg: fmt.Sprintf("failed to write YAML file %s", path), Err: err}
	}
	if err := enc.Close(); err != nil {
		return &UpdateError{Msg: fmt.Sprintf("failed to write YAML file %s", path), Err: err}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return &UpdateError{Msg: fmt.Sprintf("failed to write YAML file %s", path), Err: err}
	}
	return nil
}

// mapValue returns the value node for key in a mapping node, or nil.
func mapValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// fieldValue reads the scalar at a nested key path. Missing intermediate
// levels read as "no current value".
func fieldValue(root *yaml.Node, fieldPath []string) string {
	node := root
	for _, key := range fieldPath {
		if node == nil || node.Kind != yaml.MappingNode {
			return ""
		}
		node = mapValue(node, key)
	}
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

// setField sets the scalar at a nested key path, creating intermediate
// mapping levels as needed.
func setField(root *yaml.Node, fieldPath []string, value string) {
	node := root
	for _, key := range fieldPath[:len(fieldPath)-1] {
		child := mapValue(node, key)
		if child == nil || child.Kind != yaml.MappingNode {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			appendOrReplace(node, key, child)
		}
		node = child
	}

	leaf := fieldPath[len(fieldPath)-1]
	if existing := mapValue(node, leaf); existing != nil {
		existing.SetString(value)
		return
	}
	scalar := &yaml.Node{}
	scalar.SetString(value)
	appendOrReplace(node, leaf, scalar)
}

// appendOrReplace binds key to value in a mapping node, replacing an existing
// entry in place to keep its position.
func appendOrReplace(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	keyNode := &yaml.Node{}
	keyNode.SetString(key)
	m.Content = append(m.Content, keyNode, value)
}
