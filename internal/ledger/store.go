// Package ledger is the append-only record of backup and archival plans
// handed to the external executor, and of the completion events it reports
// back. Rows are never updated or deleted; triggers reject both.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	archerrors "archscan/internal/errors"
	"archscan/internal/legacy"
	"archscan/internal/model"
)

const currentSchemaVersion = 1

// EventKind names a completion event
type EventKind string

const (
	EventBackupCompleted   EventKind = "backup_completed"
	EventBackupRejected    EventKind = "backup_rejected"
	EventArchivalCompleted EventKind = "archival_completed"
)

// Event is one recorded event
type Event struct {
	Seq        int64     `json:"seq"`
	PlanID     string    `json:"planId"`
	Kind       EventKind `json:"kind"`
	Checksum   string    `json:"checksum,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// PlanStatus is the executor-facing state of one plan pair
type PlanStatus struct {
	ScanID          string              `json:"scanId"`
	Archival        legacy.ArchivalPlan `json:"archival"`
	Backup          legacy.BackupPlan   `json:"backup"`
	BackupCompleted bool                `json:"backupCompleted"`
	Archived        bool                `json:"archived"`
}

// Store is the ledger database
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
	now    func() time.Time
}

// Open opens or creates the ledger at dbPath
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, archerrors.New(archerrors.LedgerError, "create ledger directory", err)
	}
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, archerrors.New(archerrors.LedgerError, "open ledger", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, archerrors.New(archerrors.LedgerError, "set pragma", err)
		}
	}

	s := &Store{conn: conn, logger: logger, dbPath: dbPath, now: time.Now}
	if !dbExists {
		logger.Info("Creating plan ledger", "path", dbPath)
	}
	if err := s.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, archerrors.New(archerrors.LedgerError, "initialize ledger schema", err)
	}
	return s, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path
func (s *Store) Path() string { return s.dbPath }

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS scans (
			scan_id TEXT PRIMARY KEY,
			root TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS backup_plans (
			id TEXT PRIMARY KEY,
			scan_id TEXT NOT NULL REFERENCES scans(scan_id),
			component_id TEXT NOT NULL,
			source_path TEXT NOT NULL,
			backup_target_path TEXT NOT NULL,
			checksum TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS archival_plans (
			id TEXT PRIMARY KEY,
			scan_id TEXT NOT NULL REFERENCES scans(scan_id),
			component_id TEXT NOT NULL,
			action TEXT NOT NULL,
			prerequisite_backup_id TEXT NOT NULL REFERENCES backup_plans(id),
			backup_target_path TEXT NOT NULL,
			risk TEXT NOT NULL,
			effort_hours REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			checksum TEXT,
			detail TEXT,
			recorded_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_plan ON events(plan_id, kind);
		CREATE INDEX IF NOT EXISTS idx_archival_component ON archival_plans(component_id);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return err
	}

	for _, table := range []string{"scans", "backup_plans", "archival_plans", "events"} {
		triggers := fmt.Sprintf(`
			CREATE TRIGGER IF NOT EXISTS %[1]s_no_update BEFORE UPDATE ON %[1]s
			BEGIN SELECT RAISE(ABORT, 'ledger is append-only'); END;
			CREATE TRIGGER IF NOT EXISTS %[1]s_no_delete BEFORE DELETE ON %[1]s
			BEGIN SELECT RAISE(ABORT, 'ledger is append-only'); END;
		`, table)
		if _, err := s.conn.Exec(triggers); err != nil {
			return err
		}
	}

	_, err := s.conn.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back ledger transaction", "error", err, "rollbackError", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// RecordPlans appends the plan pairs of a scan. Plans already recorded
// (same component content) are kept as they are. Returns the number of new
// archival plans.
func (s *Store) RecordPlans(ctx context.Context, scanID, root string, generatedAt time.Time, pairs []legacy.PlanPair) (int, error) {
	if err := legacy.VerifyPairs(pairs); err != nil {
		return 0, err
	}

	added := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO scans (scan_id, root, generated_at, recorded_at) VALUES (?, ?, ?, ?)`,
			scanID, root, generatedAt.UTC().Format(time.RFC3339Nano), now); err != nil {
			return err
		}
		for _, p := range pairs {
			b := p.Backup
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO backup_plans
					(id, scan_id, component_id, source_path, backup_target_path, checksum, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				b.ID, scanID, b.ComponentID, b.SourcePath, b.BackupTargetPath, b.Checksum, now); err != nil {
				return err
			}
			a := p.Archival
			res, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO archival_plans
					(id, scan_id, component_id, action, prerequisite_backup_id, backup_target_path, risk, effort_hours, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, scanID, a.ComponentID, string(a.Action), a.PrerequisiteBackupID, a.BackupTargetPath, string(a.Risk), a.EffortHours, now)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, archerrors.New(archerrors.LedgerError, "record plans", err)
	}
	s.logger.Info("Recorded plans", "scanId", scanID, "plans", len(pairs), "new", added)
	return added, nil
}

func (s *Store) appendEvent(ctx context.Context, planID string, kind EventKind, checksum, detail string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO events (plan_id, kind, checksum, detail, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		planID, string(kind), checksum, detail, s.timestamp())
	if err != nil {
		return archerrors.New(archerrors.LedgerError, "append event", err)
	}
	return nil
}

// Backup returns a recorded backup plan
func (s *Store) Backup(ctx context.Context, id string) (legacy.BackupPlan, error) {
	var b legacy.BackupPlan
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, component_id, source_path, backup_target_path, checksum
		FROM backup_plans WHERE id = ?`, id).
		Scan(&b.ID, &b.ComponentID, &b.SourcePath, &b.BackupTargetPath, &b.Checksum)
	if err == sql.ErrNoRows {
		return b, archerrors.Newf(archerrors.LedgerError, "unknown backup plan %s", id)
	}
	if err != nil {
		return b, archerrors.New(archerrors.LedgerError, "read backup plan", err)
	}
	return b, nil
}

// Archival returns a recorded archival plan
func (s *Store) Archival(ctx context.Context, id string) (legacy.ArchivalPlan, error) {
	var a legacy.ArchivalPlan
	var action, risk string
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, component_id, action, prerequisite_backup_id, backup_target_path, risk, effort_hours
		FROM archival_plans WHERE id = ?`, id).
		Scan(&a.ID, &a.ComponentID, &action, &a.PrerequisiteBackupID, &a.BackupTargetPath, &risk, &a.EffortHours)
	if err == sql.ErrNoRows {
		return a, archerrors.Newf(archerrors.LedgerError, "unknown archival plan %s", id)
	}
	if err != nil {
		return a, archerrors.New(archerrors.LedgerError, "read archival plan", err)
	}
	a.Action = legacy.ArchivalAction(action)
	a.Risk = model.RiskLevel(risk)
	return a, nil
}

// CompleteBackup records that the executor finished a backup. The reported
// checksum must match the planned content checksum; a mismatch is recorded
// as a rejected event and returned as an error.
func (s *Store) CompleteBackup(ctx context.Context, backupID, checksum string) error {
	b, err := s.Backup(ctx, backupID)
	if err != nil {
		return err
	}
	if checksum != b.Checksum {
		detail := fmt.Sprintf("checksum %s does not match planned %s", checksum, b.Checksum)
		if err := s.appendEvent(ctx, backupID, EventBackupRejected, checksum, detail); err != nil {
			return err
		}
		s.logger.Warn("Backup rejected", "backupId", backupID, "component", b.ComponentID)
		return archerrors.New(archerrors.LedgerError, "backup "+backupID+": "+detail, nil)
	}
	if err := s.appendEvent(ctx, backupID, EventBackupCompleted, checksum, ""); err != nil {
		return err
	}
	s.logger.Info("Backup completed", "backupId", backupID, "component", b.ComponentID)
	return nil
}

func (s *Store) hasEvent(ctx context.Context, planID string, kind EventKind) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE plan_id = ? AND kind = ?`, planID, string(kind)).Scan(&n)
	if err != nil {
		return false, archerrors.New(archerrors.LedgerError, "read events", err)
	}
	return n > 0, nil
}

// CanArchive reports whether the archival plan's prerequisite backup has a
// verified completion event. The reason explains a refusal.
func (s *Store) CanArchive(ctx context.Context, archivalID string) (bool, string, error) {
	a, err := s.Archival(ctx, archivalID)
	if err != nil {
		return false, "", err
	}
	archived, err := s.hasEvent(ctx, archivalID, EventArchivalCompleted)
	if err != nil {
		return false, "", err
	}
	if archived {
		return false, "already archived", nil
	}
	done, err := s.hasEvent(ctx, a.PrerequisiteBackupID, EventBackupCompleted)
	if err != nil {
		return false, "", err
	}
	if !done {
		return false, "backup " + a.PrerequisiteBackupID + " has not completed", nil
	}
	return true, "", nil
}

// CompleteArchival records that the executor archived a component. It is
// refused unless CanArchive holds.
func (s *Store) CompleteArchival(ctx context.Context, archivalID string) error {
	ok, reason, err := s.CanArchive(ctx, archivalID)
	if err != nil {
		return err
	}
	if !ok {
		return archerrors.New(archerrors.LedgerError, "archival "+archivalID+" refused: "+reason, nil)
	}
	return s.appendEvent(ctx, archivalID, EventArchivalCompleted, "", "")
}

// Status lists every archival plan with its completion state, ordered by
// record time then id.
func (s *Store) Status(ctx context.Context) ([]PlanStatus, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT a.scan_id, a.id, a.component_id, a.action, a.prerequisite_backup_id, a.backup_target_path,
		       a.risk, a.effort_hours, b.source_path, b.checksum,
		       EXISTS (SELECT 1 FROM events e WHERE e.plan_id = b.id AND e.kind = ?),
		       EXISTS (SELECT 1 FROM events e WHERE e.plan_id = a.id AND e.kind = ?)
		FROM archival_plans a
		JOIN backup_plans b ON b.id = a.prerequisite_backup_id
		ORDER BY a.recorded_at, a.id`,
		string(EventBackupCompleted), string(EventArchivalCompleted))
	if err != nil {
		return nil, archerrors.New(archerrors.LedgerError, "query status", err)
	}
	defer rows.Close()

	var out []PlanStatus
	for rows.Next() {
		var st PlanStatus
		var action, risk string
		if err := rows.Scan(&st.ScanID, &st.Archival.ID, &st.Archival.ComponentID, &action,
			&st.Archival.PrerequisiteBackupID, &st.Archival.BackupTargetPath, &risk,
			&st.Archival.EffortHours, &st.Backup.SourcePath, &st.Backup.Checksum,
			&st.BackupCompleted, &st.Archived); err != nil {
			return nil, archerrors.New(archerrors.LedgerError, "scan status", err)
		}
		st.Archival.Action = legacy.ArchivalAction(action)
		st.Archival.Risk = model.RiskLevel(risk)
		st.Backup.ID = st.Archival.PrerequisiteBackupID
		st.Backup.ComponentID = st.Archival.ComponentID
		st.Backup.BackupTargetPath = st.Archival.BackupTargetPath
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, archerrors.New(archerrors.LedgerError, "iterate status", err)
	}
	return out, nil
}

// Events returns every event for planID in sequence order
func (s *Store) Events(ctx context.Context, planID string) ([]Event, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT seq, plan_id, kind, COALESCE(checksum, ''), COALESCE(detail, ''), recorded_at
		FROM events WHERE plan_id = ? ORDER BY seq`, planID)
	if err != nil {
		return nil, archerrors.New(archerrors.LedgerError, "query events", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var kind, at string
		if err := rows.Scan(&e.Seq, &e.PlanID, &kind, &e.Checksum, &e.Detail, &at); err != nil {
			return nil, archerrors.New(archerrors.LedgerError, "scan event", err)
		}
		e.Kind = EventKind(kind)
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}
