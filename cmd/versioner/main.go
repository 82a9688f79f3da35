package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kokistudios/versioner/internal/bundle"
	versionermcp "github.com/kokistudios/versioner/internal/mcp"
	"github.com/kokistudios/versioner/internal/notebook"
	"github.com/kokistudios/versioner/internal/ui"
	"github.com/kokistudios/versioner/internal/version"
	"github.com/kokistudios/versioner/internal/watch"
)

// Set via ldflags at build time
var (
	toolVersion = "dev"
	commit      = "none"
	date        = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return toolVersion
	}
	return fmt.Sprintf("%s (%s, %s)", toolVersion, commit, date)
}

func main() {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "versioner",
		Short: "Version management for notebooks and Databricks assets",
		Long:  "A CLI tool that propagates the project version from the __version__ file into notebook filenames and Databricks asset bundle YAML files.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(notebooksCmd())
	rootCmd.AddCommand(updateYAMLCmd())
	rootCmd.AddCommand(allCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(mcpServeCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func notebooksCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:     "notebooks",
		Short:   "Version all Jupyter notebooks in the project",
		Example: "  versioner notebooks\n  versioner notebooks --dry-run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotebooks(dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be changed without modifying files")
	return cmd
}

func runNotebooks(dryRun bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	ui.Info(fmt.Sprintf("Searching for notebooks in: %s", cwd))
	results, err := notebook.ApplyAll(cwd, "", dryRun)
	if err != nil {
		var nf *version.NotFoundError
		if errors.As(err, &nf) {
			return fmt.Errorf("%w\n\nMake sure your project has a %s file", err, version.FileName)
		}
		return err
	}

	if len(results) == 0 {
		ui.Info("No notebooks found.")
		return nil
	}

	sum := notebook.Summarize(results)
	ui.SectionHeader("Versioning complete")
	ui.KeyValue("Files processed:", fmt.Sprintf("%d", sum.Processed))
	ui.KeyValue("Files renamed:  ", fmt.Sprintf("%d", sum.Renamed))
	ui.KeyValue("Files skipped:  ", fmt.Sprintf("%d", sum.Skipped))
	fmt.Println()

	for _, r := range results {
		prefix := ui.Dim("○")
		if r.Renamed {
			prefix = ui.Green("✓")
		}
		fmt.Printf("%s %s\n", prefix, r.Message)
	}
	return nil
}

func updateYAMLCmd() *cobra.Command {
	var dryRun, noBackup bool
	cmd := &cobra.Command{
		Use:     "update-yaml",
		Short:   "Update the version in databricks.yml and resources/variables.yml",
		Example: "  versioner update-yaml\n  versioner update-yaml --dry-run\n  versioner update-yaml --no-backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdateYAML(dryRun, noBackup)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be changed without modifying files")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not create backup files")
	return cmd
}

func runUpdateYAML(dryRun, noBackup bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	results, err := bundle.UpdateAll(cwd, "", !noBackup, dryRun)
	if err != nil {
		return err
	}

	skipped := 0
	for _, r := range results {
		prefix := ui.Dim("○")
		if r.Updated {
			prefix = ui.Green("✓")
		} else if strings.HasPrefix(r.Message, "Skipped") {
			skipped++
			prefix = ui.Yellow("!")
		}
		fmt.Printf("%s %s\n", prefix, r.Message)
	}

	// "Nothing found to update" is distinct from "everything already current":
	// when every document was skipped as missing, the invocation did no useful
	// work and almost certainly ran from the wrong directory.
	if skipped == len(results) {
		return fmt.Errorf("no YAML files found to update in %s", cwd)
	}
	return nil
}

func allCmd() *cobra.Command {
	var dryRun, noBackup bool
	cmd := &cobra.Command{
		Use:     "all",
		Short:   "Run all versioning operations (notebooks + YAML)",
		Example: "  versioner all\n  versioner all --dry-run --no-backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.SectionHeader("Versioning Notebooks")
			nbErr := runNotebooks(dryRun)
			if nbErr != nil {
				ui.Error(nbErr.Error())
			}

			ui.SectionHeader("Updating Databricks YAML")
			yamlErr := runUpdateYAML(dryRun, noBackup)
			if yamlErr != nil {
				ui.Error(yamlErr.Error())
			}

			if nbErr != nil || yamlErr != nil {
				return fmt.Errorf("one or more versioning operations failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be changed without modifying files")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not create backup files")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report version drift between __version__, notebooks, and YAML files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			report, err := statusReport(cwd)
			if err != nil {
				return err
			}
			ui.RenderMarkdown(report)
			return nil
		},
	}
}

// statusReport builds a markdown drift report for the project at root.
func statusReport(root string) (string, error) {
	sourcePath, err := version.FindVersionFile(root)
	if err != nil {
		return "", err
	}
	projectVersion, err := version.ParseVersionFile(sourcePath)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Version Status\n\n")
	fmt.Fprintf(&b, "Project version: **%s** (from `%s`)\n\n", projectVersion, sourcePath)

	b.WriteString("## Notebooks\n\n")
	notebooks, err := notebook.Find(root)
	if err != nil {
		return "", err
	}
	if len(notebooks) == 0 {
		b.WriteString("No notebooks found.\n\n")
	} else {
		b.WriteString("| File | Version | |\n|---|---|---|\n")
		for _, nb := range notebooks {
			name := filepath.Base(nb)
			_, ver := notebook.ParseName(name)
			state := "stale"
			if ver == projectVersion {
				state = "current"
			}
			if ver == "" {
				ver = "(none)"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", name, ver, state)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Configuration\n\n")
	writeDocLine := func(label, path string, read func(string) (string, error)) {
		if path == "" {
			fmt.Fprintf(&b, "- %s: missing\n", label)
			return
		}
		v, err := read(path)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "- %s: unreadable (%v)\n", label, err)
		case v == "":
			fmt.Fprintf(&b, "- %s: no version set\n", label)
		case v == projectVersion:
			fmt.Fprintf(&b, "- %s: `%s` (current)\n", label, v)
		default:
			fmt.Fprintf(&b, "- %s: `%s` (stale)\n", label, v)
		}
	}

	bundlePath, _ := bundle.FindBundleFile(root)
	writeDocLine(bundle.BundleFileName, bundlePath, bundle.BundleVersion)
	variablesPath, _ := bundle.FindVariablesFile(root)
	writeDocLine(bundle.VariablesFileRel, variablesPath, bundle.VariablesVersion)

	return b.String(), nil
}

func cleanCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove .yml.bak backup files left by update-yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			var backups []string
			err = filepath.WalkDir(cwd, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.HasSuffix(d.Name(), ".yml.bak") {
					backups = append(backups, path)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if len(backups) == 0 {
				ui.EmptyState("No backup files found.")
				return nil
			}

			for _, b := range backups {
				ui.Detail("found:", b)
			}
			if !force {
				proceed, err := ui.Confirm(fmt.Sprintf("Remove %d backup file(s)?", len(backups)))
				if err != nil {
					return err
				}
				if !proceed {
					ui.Info("Cancelled.")
					return nil
				}
			}

			for _, b := range backups {
				if err := os.Remove(b); err != nil {
					return fmt.Errorf("failed to remove %s: %w", b, err)
				}
			}
			ui.Success(fmt.Sprintf("Removed %d backup file(s)", len(backups)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Remove without confirmation")
	return cmd
}

func watchCmd() *cobra.Command {
	var noBackup bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the __version__ file and update YAML files on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watch.Run(ctx, cwd, !noBackup, ui.Logger, nil)
		},
	}
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not create backup files")
	return cmd
}

func mcpServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "Run the versioner MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			return versionermcp.NewServer(cwd, buildVersion()).Run(cmd.Context())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool and project version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("versioner version %s\n", buildVersion())

			cwd, err := os.Getwd()
			if err != nil {
				return
			}
			if v, err := version.Project(cwd); err == nil {
				fmt.Printf("Project version: %s\n", v)
			} else {
				fmt.Println("Project version: (not found)")
			}
		},
	}
}
