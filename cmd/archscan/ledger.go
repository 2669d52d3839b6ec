package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"archscan/internal/crawler"
	archerrors "archscan/internal/errors"
)

var (
	ledgerFormat   string
	ledgerChecksum string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and update the append-only plan ledger",
	Long: `The ledger records every backup and archival plan and the executor's
completion events. Rows are never updated or deleted.

An archival plan may only be completed after its backup plan completed
with a checksum matching the planned content.`,
}

var ledgerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recorded plans and their completion state",
	Args:  cobra.NoArgs,
	RunE:  runLedgerStatus,
}

var ledgerCompleteBackupCmd = &cobra.Command{
	Use:   "complete-backup <backup-plan-id>",
	Short: "Record a finished backup",
	Long: `Record that the executor finished a backup.

The checksum of the file at the plan's backup target path is computed and
must match the planned checksum; --checksum supplies it directly instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerCompleteBackup,
}

var ledgerCanArchiveCmd = &cobra.Command{
	Use:   "can-archive <archival-plan-id>",
	Short: "Report whether an archival plan may run",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerCanArchive,
}

var ledgerCompleteArchivalCmd = &cobra.Command{
	Use:   "complete-archival <archival-plan-id>",
	Short: "Record a finished archival",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerCompleteArchival,
}

func init() {
	ledgerStatusCmd.Flags().StringVar(&ledgerFormat, "format", "human", "Output format (human, json)")
	ledgerCompleteBackupCmd.Flags().StringVar(&ledgerChecksum, "checksum", "", "Checksum reported by the executor")

	ledgerCmd.AddCommand(ledgerStatusCmd)
	ledgerCmd.AddCommand(ledgerCompleteBackupCmd)
	ledgerCmd.AddCommand(ledgerCanArchiveCmd)
	ledgerCmd.AddCommand(ledgerCompleteArchivalCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store, err := s.openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	statuses, err := store.Status(cmd.Context())
	if err != nil {
		return err
	}
	out, err := FormatResponse(&LedgerStatusResponse{Path: store.Path(), Plans: statuses}, OutputFormat(ledgerFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runLedgerCompleteBackup(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store, err := s.openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	plan, err := store.Backup(ctx, args[0])
	if err != nil {
		return err
	}

	sum := ledgerChecksum
	if sum == "" {
		target := filepath.FromSlash(plan.BackupTargetPath)
		if !filepath.IsAbs(target) {
			target = filepath.Join(s.cfg.RootDirectory, target)
		}
		data, err := os.ReadFile(target)
		if err != nil {
			return archerrors.New(archerrors.LedgerError, "cannot read backup target "+target, err)
		}
		sum = crawler.Checksum(data)
	}

	if err := store.CompleteBackup(ctx, plan.ID, sum); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup %s of %s recorded as complete.\n", plan.ID, plan.ComponentID)
	return nil
}

func runLedgerCanArchive(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store, err := s.openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	ok, reason, err := store.CanArchive(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return archerrors.New(archerrors.LedgerError, "archival "+args[0]+" may not run: "+reason, nil)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archival %s may run.\n", args[0])
	return nil
}

func runLedgerCompleteArchival(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store, err := s.openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CompleteArchival(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archival %s recorded as complete.\n", args[0])
	return nil
}
