package cli

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
)

// ExportOptions holds the flags of the export command.
type ExportOptions struct {
	Format   string
	OutDir   string
	Encoding string
}

// ExportSummary is the result of an export run.
type ExportSummary struct {
	Subject    string `json:"subject"`
	Format     string `json:"format"`
	Path       string `json:"path"`
	Records    int    `json:"records"`
	MarkedSent int64  `json:"marked_sent"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export <orders|users>",
		Short: "Drain pending sync records into a spreadsheet",
		Long: `Write every pending record of a sync queue to an xlsx or csv file and
mark exactly those records sent. Records queued during the run stay pending.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"orders", "users"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "file format (xlsx|csv); defaults to EXPORT_FORMAT")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "output directory; defaults to EXPORT_DIR")
	cmd.Flags().StringVar(&opts.Encoding, "encoding", "", "csv encoding (utf-8|windows-1251); defaults to CSV_ENCODING")

	return cmd
}

func runExport(cmd *cobra.Command, rootOpts *RootOptions, opts *ExportOptions, rawSubject string) error {
	subject, err := model.ParseSubject(rawSubject)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid subject", err)
	}

	var format, outDir string
	a, err := openApp(cmd.Context(), rootOpts, func(cfg *config.Config) {
		if opts.Encoding != "" {
			cfg.CSVEncoding = opts.Encoding
		}
		format = cmp.Or(opts.Format, cfg.ExportFormat)
		outDir = cmp.Or(opts.OutDir, cfg.ExportDir)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	// The directory must be writable before any record is marked sent.
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create output directory", err)
	}
	probe, err := os.CreateTemp(outDir, ".export-*")
	if err != nil {
		return WrapExitError(ExitCommandError, "output directory is not writable", err)
	}
	tmpPath := probe.Name()
	defer os.Remove(tmpPath)

	result, err := a.Exports.Export(cmd.Context(), subject, format)
	if err != nil {
		_ = probe.Close()
		return WrapExitError(ExitFailure, "export failed", err)
	}

	if _, err := probe.Write(result.Data); err != nil {
		_ = probe.Close()
		return WrapExitError(ExitFailure, "failed to write export file", err)
	}
	if err := probe.Close(); err != nil {
		return WrapExitError(ExitFailure, "failed to write export file", err)
	}

	path := filepath.Join(outDir, result.FileName)
	if err := os.Rename(tmpPath, path); err != nil {
		return WrapExitError(ExitFailure, "failed to write export file", err)
	}

	summary := ExportSummary{
		Subject:    subject.String(),
		Format:     result.Format,
		Path:       path,
		Records:    result.Records,
		MarkedSent: result.MarkedSent,
	}

	return formatter(rootOpts, cmd).Success(summary, fmt.Sprintf(
		"exported %d %s record(s) to %s (%d marked sent)",
		summary.Records, subject, path, summary.MarkedSent,
	))
}
