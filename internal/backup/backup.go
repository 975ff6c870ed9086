// Package backup creates and restores point-in-time copies of the sqlite
// database under <storage>/backups/<name>/, each with a metadata.json
// describing when and from what it was taken.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrNotFound is returned when the named backup directory does not exist.
var ErrNotFound = errors.New("backup: not found")

const (
	databaseFile = "database.db"
	metadataFile = "metadata.json"
	backupType   = "full"
	version      = "1.0.0"
)

// Metadata is the sidecar record written next to every backup copy.
type Metadata struct {
	BackupName string    `json:"backup_name"`
	CreatedAt  time.Time `json:"created_at"`
	Driver     string    `json:"driver"`
	SourcePath string    `json:"source_path"`
	BackupType string    `json:"backup_type"`
	Version    string    `json:"version"`
}

// Info describes one backup on disk.
type Info struct {
	BackupName string    `json:"backup_name"`
	BackupPath string    `json:"backup_path"`
	CreatedAt  time.Time `json:"created_at"`
	BackupType string    `json:"backup_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Files      []File    `json:"files,omitempty"`
}

// File is one entry inside a backup directory.
type File struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	Modified  time.Time `json:"modified"`
}

// Manager copies the sqlite database file in and out of the backup root.
type Manager struct {
	root   string // backup root directory
	dbPath string // live sqlite database file
	driver string
}

// NewManager creates the backup root if needed.
func NewManager(root, dbPath, driver string) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create root %s: %w", root, err)
	}
	return &Manager{root: root, dbPath: dbPath, driver: driver}, nil
}

// Root returns the backup root directory.
func (m *Manager) Root() string { return m.root }

// Create copies the database into a new backup directory. An empty name
// yields backup_YYYYMMDD_HHMMSS.
func (m *Manager) Create(name string) (*Info, error) {
	if name == "" {
		name = "backup_" + time.Now().Format("20060102_150405")
	}
	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create %s: %w", name, err)
	}

	if err := copyFile(m.dbPath, filepath.Join(dir, databaseFile)); err != nil {
		return nil, fmt.Errorf("backup: copy database for %s: %w", name, err)
	}

	meta := Metadata{
		BackupName: name,
		CreatedAt:  time.Now().UTC(),
		Driver:     m.driver,
		SourcePath: m.dbPath,
		BackupType: backupType,
		Version:    version,
	}
	if err := writeMetadata(dir, meta); err != nil {
		return nil, err
	}

	log.Printf("backup: created %s", name)
	return m.Info(name)
}

// Restore copies a backup's database file back over the live one, taking a
// pre_restore_<ts> safety copy of the current state first.
func (m *Manager) Restore(name string) (*Info, error) {
	dir := filepath.Join(m.root, name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("backup: stat %s: %w", name, err)
	}
	src := filepath.Join(dir, databaseFile)
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("backup: %s has no database file: %w", name, err)
	}

	safety := "pre_restore_" + time.Now().Format("20060102_150405")
	if _, err := m.Create(safety); err != nil {
		return nil, fmt.Errorf("backup: safety copy before restoring %s: %w", name, err)
	}

	if err := copyFile(src, m.dbPath); err != nil {
		return nil, fmt.Errorf("backup: restore %s: %w", name, err)
	}
	log.Printf("backup: restored %s (safety copy %s)", name, safety)
	return m.Info(name)
}

// List returns all backups, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("backup: read root: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := m.Info(e.Name())
		if err != nil {
			log.Printf("backup: skipping unreadable backup %s: %v", e.Name(), err)
			continue
		}
		infos = append(infos, *info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Info describes a single backup, including its file inventory.
func (m *Manager) Info(name string) (*Info, error) {
	dir := filepath.Join(m.root, name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("backup: stat %s: %w", name, err)
	}

	meta, err := readMetadata(dir)
	if err != nil {
		return nil, err
	}

	info := &Info{
		BackupName: name,
		BackupPath: dir,
		CreatedAt:  meta.CreatedAt,
		BackupType: meta.BackupType,
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("backup: read %s: %w", name, err)
	}
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil || fi.IsDir() {
			continue
		}
		info.SizeBytes += fi.Size()
		info.Files = append(info.Files, File{
			Name:      e.Name(),
			SizeBytes: fi.Size(),
			Modified:  fi.ModTime(),
		})
	}
	return info, nil
}

// Delete removes a backup directory.
func (m *Manager) Delete(name string) error {
	dir := filepath.Join(m.root, name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("backup: stat %s: %w", name, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("backup: delete %s: %w", name, err)
	}
	log.Printf("backup: deleted %s", name)
	return nil
}

// CleanupOld deletes backups older than daysToKeep and returns how many
// were removed. Backups without readable metadata are left alone.
func (m *Manager) CleanupOld(daysToKeep int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep)
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("backup: read root: %w", err)
	}

	deleted := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(m.root, e.Name()))
		if err != nil {
			log.Printf("backup: cleanup skipping %s: %v", e.Name(), err)
			continue
		}
		if meta.CreatedAt.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(m.root, e.Name())); err != nil {
				log.Printf("backup: cleanup failed to delete %s: %v", e.Name(), err)
				continue
			}
			log.Printf("backup: cleanup deleted %s", e.Name())
			deleted++
		}
	}
	return deleted, nil
}

func writeMetadata(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: marshal metadata: %w", err)
	}
	path := filepath.Join(dir, metadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("backup: write metadata: %w", err)
	}
	return nil
}

func readMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("backup: read metadata in %s: %w", dir, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("backup: parse metadata in %s: %w", dir, err)
	}
	return &meta, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
