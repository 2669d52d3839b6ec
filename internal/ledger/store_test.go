package ledger

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	archerrors "archscan/internal/errors"
	"archscan/internal/legacy"
	"archscan/internal/model"
	"archscan/internal/slogutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger", "ledger.db"), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pair(componentID, checksum string) legacy.PlanPair {
	backupID := legacy.BackupPlanID(componentID, checksum)
	target := legacy.BackupTarget(".archscan/backups", "2025-06-01", componentID)
	return legacy.PlanPair{
		Backup: legacy.BackupPlan{
			ID:               backupID,
			ComponentID:      componentID,
			SourcePath:       componentID,
			BackupTargetPath: target,
			Checksum:         checksum,
		},
		Archival: legacy.ArchivalPlan{
			ID:                   legacy.ArchivalPlanID(componentID, checksum),
			ComponentID:          componentID,
			Action:               legacy.ActionArchive,
			PrerequisiteBackupID: backupID,
			BackupTargetPath:     target,
			Risk:                 model.RiskLow,
			EffortHours:          0.75,
		},
	}
}

var generated = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRecordPlans(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	pairs := []legacy.PlanPair{pair("src/old/a.ts", "aaa"), pair("src/old/b.ts", "bbb")}

	n, err := s.RecordPlans(ctx, "scan-1", "/repo", generated, pairs)
	if err != nil {
		t.Fatalf("RecordPlans failed: %v", err)
	}
	if n != 2 {
		t.Errorf("added = %d, want 2", n)
	}

	// Same content again from a later scan is not duplicated.
	n, err = s.RecordPlans(ctx, "scan-2", "/repo", generated.Add(time.Hour), pairs[:1])
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("re-recording added %d plans", n)
	}

	status, err := s.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != 2 {
		t.Fatalf("status has %d plans, want 2", len(status))
	}
	for _, st := range status {
		if st.Archival.PrerequisiteBackupID != st.Backup.ID || st.BackupCompleted || st.Archived {
			t.Errorf("unexpected status %+v", st)
		}
		if st.ScanID != "scan-1" {
			t.Errorf("scan id = %s", st.ScanID)
		}
	}
}

func TestRecordPlans_RejectsUnpaired(t *testing.T) {
	s := openTestStore(t)
	p := pair("src/a.ts", "x")
	p.Archival.PrerequisiteBackupID = "missing"
	if _, err := s.RecordPlans(context.Background(), "scan", "/repo", generated, []legacy.PlanPair{p}); err == nil {
		t.Error("expected error for archival plan without backup")
	}
}

func TestBackupThenArchive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := pair("src/old/a.ts", "aaa")
	if _, err := s.RecordPlans(ctx, "scan-1", "/repo", generated, []legacy.PlanPair{p}); err != nil {
		t.Fatal(err)
	}

	ok, reason, err := s.CanArchive(ctx, p.Archival.ID)
	if err != nil || ok {
		t.Fatalf("CanArchive before backup = %v, %q, %v", ok, reason, err)
	}
	if !strings.Contains(reason, "has not completed") {
		t.Errorf("reason = %q", reason)
	}
	if err := s.CompleteArchival(ctx, p.Archival.ID); archerrors.CodeOf(err) != archerrors.LedgerError {
		t.Errorf("archival before backup err = %v", err)
	}

	if err := s.CompleteBackup(ctx, p.Backup.ID, "tampered"); err == nil {
		t.Error("checksum mismatch must be rejected")
	}
	if ok, _, _ := s.CanArchive(ctx, p.Archival.ID); ok {
		t.Error("rejected backup must not unlock archival")
	}

	if err := s.CompleteBackup(ctx, p.Backup.ID, "aaa"); err != nil {
		t.Fatalf("CompleteBackup failed: %v", err)
	}
	if ok, _, err := s.CanArchive(ctx, p.Archival.ID); err != nil || !ok {
		t.Errorf("CanArchive after backup = %v, %v", ok, err)
	}
	if err := s.CompleteArchival(ctx, p.Archival.ID); err != nil {
		t.Fatalf("CompleteArchival failed: %v", err)
	}
	if ok, reason, _ := s.CanArchive(ctx, p.Archival.ID); ok || reason != "already archived" {
		t.Errorf("CanArchive after archival = %v, %q", ok, reason)
	}

	events, err := s.Events(ctx, p.Backup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Kind != EventBackupRejected || events[1].Kind != EventBackupCompleted {
		t.Errorf("backup events = %+v", events)
	}

	status, _ := s.Status(ctx)
	if len(status) != 1 || !status[0].BackupCompleted || !status[0].Archived {
		t.Errorf("status = %+v", status)
	}
}

func TestAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := pair("src/old/a.ts", "aaa")
	if _, err := s.RecordPlans(ctx, "scan-1", "/repo", generated, []legacy.PlanPair{p}); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteBackup(ctx, p.Backup.ID, "aaa"); err != nil {
		t.Fatal(err)
	}

	statements := []string{
		`UPDATE backup_plans SET checksum = 'x'`,
		`DELETE FROM backup_plans`,
		`UPDATE archival_plans SET risk = 'high'`,
		`DELETE FROM archival_plans`,
		`DELETE FROM events`,
		`UPDATE events SET kind = 'backup_completed'`,
		`DELETE FROM scans`,
	}
	for _, stmt := range statements {
		_, err := s.conn.Exec(stmt)
		if err == nil || !strings.Contains(err.Error(), "append-only") {
			t.Errorf("%s: err = %v, want append-only rejection", stmt, err)
		}
	}
}

func TestUnknownPlans(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, _, err := s.CanArchive(ctx, "nope"); archerrors.CodeOf(err) != archerrors.LedgerError {
		t.Errorf("CanArchive(unknown) err = %v", err)
	}
	if err := s.CompleteBackup(ctx, "nope", "x"); archerrors.CodeOf(err) != archerrors.LedgerError {
		t.Errorf("CompleteBackup(unknown) err = %v", err)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	logger := slogutil.NewDiscardLogger()
	s, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	p := pair("src/a.ts", "x")
	if _, err := s.RecordPlans(context.Background(), "scan", "/repo", generated, []legacy.PlanPair{p}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(path, logger)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, err := s.Archival(context.Background(), p.Archival.ID); err != nil {
		t.Errorf("plan lost after reopen: %v", err)
	}
}
