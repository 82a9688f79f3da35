// Package mcp exposes the versioner over the Model Context Protocol so
// notebooks and coding agents can query the project version without shelling
// out to the CLI.
package mcp

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/versioner/internal/bundle"
	"github.com/kokistudios/versioner/internal/notebook"
	"github.com/kokistudios/versioner/internal/table"
	"github.com/kokistudios/versioner/internal/version"
)

// Server wraps the MCP server with the project root it serves.
type Server struct {
	root   string
	server *mcp.Server
}

// NewServer creates a versioner MCP server rooted at the given project
// directory.
func NewServer(root, toolVersion string) *Server {
	s := &Server{root: root}

	impl := &mcp.Implementation{
		Name:    "versioner",
		Version: toolVersion,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "versioner_get_version",
		Description: "Get the current project version from the __version__ file. Use this instead of hardcoding version strings in notebooks or scripts.",
	}, s.handleGetVersion)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "versioner_format_table_name",
		Description: "Format a versioned Databricks delta table name (periods in the version become underscores for Unity Catalog). Optionally compose a full catalog.schema.table path.",
	}, s.handleFormatTableName)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "versioner_status",
		Description: "Report the project version alongside the versions currently embedded in notebook filenames, databricks.yml, and resources/variables.yml. Use this to spot drift before a deploy.",
	}, s.handleStatus)
}

// GetVersionArgs is the input of versioner_get_version.
type GetVersionArgs struct {
	Root string `json:"root,omitempty" jsonschema:"Directory to resolve the version from (defaults to the server's project root)"`
}

// GetVersionResult is the output of versioner_get_version.
type GetVersionResult struct {
	Version string `json:"version"`
	Source  string `json:"source"`
}

func (s *Server) handleGetVersion(ctx context.Context, req *mcp.CallToolRequest, args GetVersionArgs) (*mcp.CallToolResult, any, error) {
	root := args.Root
	if root == "" {
		root = s.root
	}

	path, err := version.FindVersionFile(root)
	if err != nil {
		return nil, nil, err
	}
	v, err := version.ParseVersionFile(path)
	if err != nil {
		return nil, nil, err
	}

	return nil, GetVersionResult{Version: v, Source: path}, nil
}

// FormatTableNameArgs is the input of versioner_format_table_name.
type FormatTableNameArgs struct {
	BaseName  string `json:"base_name" jsonschema:"Base table name, e.g. user_events"`
	Catalog   string `json:"catalog,omitempty" jsonschema:"Catalog name; when set together with schema, a full catalog.schema.table path is returned"`
	Schema    string `json:"schema,omitempty" jsonschema:"Schema name; when set together with catalog, a full catalog.schema.table path is returned"`
	Separator string `json:"separator,omitempty" jsonschema:"Separator between name and version (default: _)"`
	Version   string `json:"version,omitempty" jsonschema:"Version to embed (defaults to the resolved project version)"`
}

// FormatTableNameResult is the output of versioner_format_table_name.
type FormatTableNameResult struct {
	TableName string `json:"table_name"`
	FullPath  string `json:"full_path,omitempty"`
}

func (s *Server) handleFormatTableName(ctx context.Context, req *mcp.CallToolRequest, args FormatTableNameArgs) (*mcp.CallToolResult, any, error) {
	if args.BaseName == "" {
		return nil, nil, fmt.Errorf("base_name is required")
	}

	sep := args.Separator
	if sep == "" {
		sep = "_"
	}
	ver := args.Version
	if ver == "" {
		v, err := version.Project(s.root)
		if err != nil {
			return nil, nil, err
		}
		ver = v
	}

	name, err := table.Name(args.BaseName, sep, ver)
	if err != nil {
		return nil, nil, err
	}
	out := FormatTableNameResult{TableName: name}

	if args.Catalog != "" && args.Schema != "" {
		full, err := table.FullPath(args.BaseName, args.Catalog, args.Schema, sep, ver)
		if err != nil {
			return nil, nil, err
		}
		out.FullPath = full
	}

	return nil, out, nil
}

// StatusArgs is the input of versioner_status.
type StatusArgs struct {
	Root string `json:"root,omitempty" jsonschema:"Project directory to inspect (defaults to the server's project root)"`
}

// NotebookStatus describes one discovered notebook.
type NotebookStatus struct {
	Path    string `json:"path"`
	Base    string `json:"base"`
	Version string `json:"version,omitempty"`
	Current bool   `json:"current"`
}

// StatusResult is the output of versioner_status.
type StatusResult struct {
	ProjectVersion   string           `json:"project_version"`
	Notebooks        []NotebookStatus `json:"notebooks"`
	BundleVersion    string           `json:"bundle_version,omitempty"`
	VariablesVersion string           `json:"variables_version,omitempty"`
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	root := args.Root
	if root == "" {
		root = s.root
	}

	projectVersion, err := version.Project(root)
	if err != nil {
		return nil, nil, err
	}

	out := StatusResult{ProjectVersion: projectVersion}

	notebooks, err := notebook.Find(root)
	if err != nil {
		return nil, nil, err
	}
	for _, nb := range notebooks {
		base, ver := notebook.ParseName(filepath.Base(nb))
		out.Notebooks = append(out.Notebooks, NotebookStatus{
			Path:    nb,
			Base:    base,
			Version: ver,
			Current: ver == projectVersion,
		})
	}

	if path, err := bundle.FindBundleFile(root); err == nil {
		if v, err := bundle.BundleVersion(path); err == nil {
			out.BundleVersion = v
		}
	}
	if path, err := bundle.FindVariablesFile(root); err == nil {
		if v, err := bundle.VariablesVersion(path); err == nil {
			out.VariablesVersion = v
		}
	}

	return nil, out, nil
}
