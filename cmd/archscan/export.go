package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"archscan/internal/architecture"
	"archscan/internal/sink"
)

var exportCompress bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Scan and write the full architecture report to the configured sink",
	Long: `Scan the repository and write the complete architecture map as JSON.

The sink is configured under "sink" in .archscan/config: "file" writes to
.archscan/reports (or sink.dir), "s3" uploads to an S3-compatible bucket.
Credentials can be given through ARCHSCAN_SINK_S3_ACCESSKEY and
ARCHSCAN_SINK_S3_SECRETKEY, including from a .env file.

Examples:
  archscan export
  archscan export --compress      # zstd, adds a .zst suffix`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportCompress, "compress", false, "Compress the report with zstd (overrides sink.compress)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext(cmd)
	defer cancel()

	m, err := s.scan(ctx)
	if err != nil {
		return err
	}
	loc, err := exportMap(ctx, s, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", loc)
	return nil
}

func exportMap(ctx context.Context, s *session, m *architecture.ArchitectureMap) (string, error) {
	out, err := sink.New(s.cfg.Sink, s.repoRoot)
	if err != nil {
		return "", err
	}
	if s.cfg.Sink.Compress || exportCompress {
		out = sink.Compressed(out)
	}
	loc, err := architecture.Export(ctx, m, out)
	if err != nil {
		return "", err
	}
	s.logger.Info("Report exported", "location", loc)
	return loc, nil
}
