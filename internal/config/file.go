package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"dario.cat/mergo"

	. "github.com/memoria-dev/memoria/internal/logging"
)

// DefaultBackupCount is the number of rotated config backups kept.
const DefaultBackupCount = 5

// AtomicWriteJSON marshals data as JSON and writes it atomically via a
// temp-file-then-rename, so a crash mid-write never corrupts the config.
func AtomicWriteJSON(path string, data interface{}, perm os.FileMode) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return atomicWrite(path, jsonData, perm)
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".memoria-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}

	success = true
	return nil
}

// BackupAndWriteJSON rotates any existing backups, copies the current
// file to .bak, then atomically writes the new data.
func BackupAndWriteJSON(path string, data interface{}, maxBackups int) error {
	if maxBackups <= 0 {
		maxBackups = DefaultBackupCount
	}

	if _, err := os.Stat(path); err == nil {
		if err := createBackup(path, maxBackups); err != nil {
			L_warn("config: backup failed, continuing with save", "error", err)
		}
	}

	if err := AtomicWriteJSON(path, data, 0600); err != nil {
		return err
	}

	L_debug("config: saved", "path", path)
	return nil
}

func createBackup(path string, maxBackups int) error {
	RotateBackups(path, maxBackups)

	backupPath := path + ".bak"
	if err := copyFile(path, backupPath); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	L_debug("config: created backup", "path", backupPath)
	return nil
}

// RotateBackups shifts .bak -> .bak.1 -> .bak.2 ... dropping the oldest
// once maxBackups is exceeded.
func RotateBackups(path string, maxBackups int) {
	if maxBackups <= 1 {
		return
	}

	backupBase := path + ".bak"
	maxIndex := maxBackups - 1

	oldestPath := fmt.Sprintf("%s.%d", backupBase, maxIndex)
	if err := os.Remove(oldestPath); err != nil && !os.IsNotExist(err) {
		L_debug("config: failed to remove oldest backup", "path", oldestPath, "error", err)
	}

	for i := maxIndex - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", backupBase, i)
		dst := fmt.Sprintf("%s.%d", backupBase, i+1)
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			L_debug("config: failed to rotate backup", "src", src, "dst", dst, "error", err)
		}
	}

	if err := os.Rename(backupBase, backupBase+".1"); err != nil && !os.IsNotExist(err) {
		L_debug("config: failed to rotate .bak to .bak.1", "error", err)
	}
}

// BackupInfo describes a single rotated config backup.
type BackupInfo struct {
	Path    string
	Index   int
	ModTime time.Time
	Size    int64
}

// ListBackups returns available backups for path, newest first.
func ListBackups(path string) []BackupInfo {
	var backups []BackupInfo
	backupBase := path + ".bak"

	if info, err := os.Stat(backupBase); err == nil {
		backups = append(backups, BackupInfo{Path: backupBase, Index: 0, ModTime: info.ModTime(), Size: info.Size()})
	}

	for i := 1; i < 100; i++ {
		bakPath := fmt.Sprintf("%s.%d", backupBase, i)
		info, err := os.Stat(bakPath)
		if err != nil {
			break
		}
		backups = append(backups, BackupInfo{Path: bakPath, Index: i, ModTime: info.ModTime(), Size: info.Size()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})

	return backups
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// BackupDatabase copies the database file at dbPath to a timestamped
// path inside a backups/ directory beside it, used by the `backup`
// operator command. The caller is responsible for closing the database
// handle first (spec.md §4.7: "backup closes the database and copies
// the file to a timestamped path").
func BackupDatabase(dbPath string) (string, error) {
	dir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create backups directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	dest := filepath.Join(dir, fmt.Sprintf("memoria-%s.db", stamp))

	if err := copyFile(dbPath, dest); err != nil {
		return "", fmt.Errorf("copy database: %w", err)
	}

	L_info("config: database backed up", "from", dbPath, "to", dest)
	return dest, nil
}

// projectOverlayFilename is the project-local TOML override file, checked
// relative to the current working directory. It lets a team commit
// memoria preferences (injection sizing, capture tool list) alongside
// the project rather than the global per-developer JSON config.
const projectOverlayFilename = ".memoria.toml"

// applyProjectOverlay merges a project-local .memoria.toml over cfg, if
// present. Malformed TOML is logged and ignored — an overlay is a
// convenience, never a reason to fail config loading.
func applyProjectOverlay(cfg *Config, projectDir string) {
	path := filepath.Join(projectDir, projectOverlayFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var overlay Config
	if _, err := toml.Decode(string(data), &overlay); err != nil {
		L_warn("config: malformed project overlay, ignoring", "path", path, "error", err)
		return
	}

	if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
		L_warn("config: failed to merge project overlay", "path", path, "error", err)
		return
	}

	validate(cfg)
	L_debug("config: applied project overlay", "path", path)
}
