package legacy

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	archerrors "archscan/internal/errors"
	"archscan/internal/model"
)

// ArchivalAction is what the external executor does with a component
type ArchivalAction string

// ActionArchive moves the component out of the source tree after backup
const ActionArchive ArchivalAction = "archive"

// planNamespace scopes the name-based plan ids
var planNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("archscan/plans"))

// BackupPlan is a reversible snapshot instruction. It must be completed
// before its paired ArchivalPlan may run.
type BackupPlan struct {
	ID               string `json:"id"`
	ComponentID      string `json:"componentId"`
	SourcePath       string `json:"sourcePath"`
	BackupTargetPath string `json:"backupTargetPath"`
	// Checksum is the content digest the completed backup must match
	Checksum string `json:"checksum"`
}

// ArchivalPlan removes a component from the active tree
type ArchivalPlan struct {
	ID                   string          `json:"id"`
	ComponentID          string          `json:"componentId"`
	Action               ArchivalAction  `json:"archivalAction"`
	PrerequisiteBackupID string          `json:"prerequisiteBackupId"`
	BackupTargetPath     string          `json:"backupTargetPath"`
	Risk                 model.RiskLevel `json:"risk"`
	EffortHours          float64         `json:"effortHours"`
}

// PlanPair is an ArchivalPlan with its prerequisite BackupPlan
type PlanPair struct {
	Backup   BackupPlan   `json:"backup"`
	Archival ArchivalPlan `json:"archival"`
}

// BackupPlanID is the deterministic id of the backup of a component version
func BackupPlanID(componentID, checksum string) string {
	return uuid.NewSHA1(planNamespace, []byte("backup\x00"+componentID+"\x00"+checksum)).String()
}

// ArchivalPlanID is the deterministic id of the archival of a component version
func ArchivalPlanID(componentID, checksum string) string {
	return uuid.NewSHA1(planNamespace, []byte("archive\x00"+componentID+"\x00"+checksum)).String()
}

// BackupTarget returns <backupDir>/<scan date>/<component id> in slash form.
func BackupTarget(backupDir, scanDate, componentID string) string {
	return filepath.ToSlash(filepath.Join(backupDir, scanDate, filepath.FromSlash(componentID)))
}

func newPair(c *model.ComponentInfo, backupDir, scanDate string, risk model.RiskLevel, effort float64) PlanPair {
	target := BackupTarget(backupDir, scanDate, c.ID)
	backup := BackupPlan{
		ID:               BackupPlanID(c.ID, c.Checksum),
		ComponentID:      c.ID,
		SourcePath:       c.ID,
		BackupTargetPath: target,
		Checksum:         c.Checksum,
	}
	return PlanPair{
		Backup: backup,
		Archival: ArchivalPlan{
			ID:                   ArchivalPlanID(c.ID, c.Checksum),
			ComponentID:          c.ID,
			Action:               ActionArchive,
			PrerequisiteBackupID: backup.ID,
			BackupTargetPath:     target,
			Risk:                 risk,
			EffortHours:          effort,
		},
	}
}

// VerifyPairs checks that every ArchivalPlan names an existing BackupPlan
// for the same component.
func VerifyPairs(pairs []PlanPair) error {
	backups := make(map[string]BackupPlan, len(pairs))
	for _, p := range pairs {
		backups[p.Backup.ID] = p.Backup
	}
	for _, p := range pairs {
		a := p.Archival
		b, ok := backups[a.PrerequisiteBackupID]
		if !ok {
			return archerrors.New(archerrors.InvariantViolation,
				fmt.Sprintf("archival plan %s has no backup plan %s", a.ID, a.PrerequisiteBackupID), nil).
				WithDetails(map[string]string{"archivalPlan": a.ID, "componentId": a.ComponentID})
		}
		if b.ComponentID != a.ComponentID {
			return archerrors.New(archerrors.InvariantViolation,
				fmt.Sprintf("archival plan %s for %s is paired with a backup of %s", a.ID, a.ComponentID, b.ComponentID), nil).
				WithDetails(map[string]string{"archivalPlan": a.ID, "backupPlan": b.ID})
		}
	}
	return nil
}
