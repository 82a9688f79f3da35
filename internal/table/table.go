// Package table formats versioned Databricks delta table names.
package table

import (
	"fmt"
	"strings"

	"github.com/kokistudios/versioner/internal/version"
)

// Name appends the version to a base table name. When ver is empty the project
// version is resolved from the current directory.
//
// Periods in the version become underscores so the result is a valid Unity
// Catalog identifier: Name("user_events", "_", "0.1.0") == "user_events_v0_1_0".
func Name(baseName, separator, ver string) (string, error) {
	if ver == "" {
		v, err := version.Project(".")
		if err != nil {
			return "", err
		}
		ver = v
	}
	return baseName + separator + "v" + strings.ReplaceAll(ver, ".", "_"), nil
}

// FullPath composes a complete catalog.schema.table path.
func FullPath(baseName, catalog, schema, separator, ver string) (string, error) {
	tableName, err := Name(baseName, separator, ver)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s.%s", catalog, schema, tableName), nil
}
