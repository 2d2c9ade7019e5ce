package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/memoria-dev/memoria/internal/config"
	"github.com/memoria-dev/memoria/internal/store"
)

func nowFormatted() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// exportBundle is the document handleExport renders: every session,
// decision, and learning scoped to a project, serialized as one JSON
// object.
type exportBundle struct {
	Sessions  []store.Session  `json:"sessions"`
	Decisions []store.Decision `json:"decisions"`
	Learnings []store.Learning `json:"learnings"`
}

func exportProject(s *store.Store, projectPath string) string {
	bundle := exportBundle{
		Sessions:  s.RecentSessions(projectPath, maxExportRows),
		Decisions: s.ActiveDecisions(projectPath, maxExportRows),
		Learnings: s.TopLearnings(projectPath, maxExportRows),
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

const maxExportRows = 1000

// backupDatabase closes the store's handle before copying its file to
// a timestamped path beside it, per the backup contract's requirement
// that the copy be taken with the database closed. The router's own
// deferred Close on the way out of Run is a harmless no-op afterward.
// The actual copy is config.BackupDatabase, a plain file copy into a
// backups/ directory beside the database; no older backups are rotated
// or removed.
func backupDatabase(s *store.Store) (string, error) {
	srcPath := s.Path()
	if srcPath == "" {
		return "", fmt.Errorf("store has no backing file path")
	}
	if err := s.Close(); err != nil {
		return "", fmt.Errorf("close database before backup: %w", err)
	}
	return config.BackupDatabase(srcPath)
}
