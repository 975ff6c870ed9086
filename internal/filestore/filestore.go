// Package filestore keeps per-task working files in a git-managed directory
// tree. A task's files live at a path derived from its hierarchical ID:
// requirements/REQ-001, requirements/REQ-001/tasks/TSK-002, and
// requirements/REQ-001/tasks/TSK-002/subtasks/SUB-001. Each node carries an
// outline.json plus a type-specific markdown spec file, addressed outside
// the store as git://<relative path>.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidID reports a hierarchical ID that maps to no storage path.
	ErrInvalidID = errors.New("filestore: invalid hierarchical id")

	// ErrNotFound reports a missing outline or spec file.
	ErrNotFound = errors.New("filestore: file not found")
)

// Store is a file store rooted at a git working tree.
type Store struct {
	root string
}

// File describes one stored file relative to the root.
type File struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// New creates a Store rooted at root, creating the directory if needed. The
// git repository itself is created separately by Init.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// TaskPath maps a hierarchical ID to its directory under the root.
func (s *Store) TaskPath(hid string) (string, error) {
	parts := strings.Split(hid, ".")
	switch len(parts) {
	case 1:
		return filepath.Join(s.root, "requirements", parts[0]), nil
	case 2:
		return filepath.Join(s.root, "requirements", parts[0], "tasks", parts[1]), nil
	case 3:
		return filepath.Join(s.root, "requirements", parts[0], "tasks", parts[1], "subtasks", parts[2]), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidID, hid)
}

// OutlinePath returns the path of a task's outline.json.
func (s *Store) OutlinePath(hid string) (string, error) {
	dir, err := s.TaskPath(hid)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "outline.json"), nil
}

// SpecPath returns the path of a task's spec file. The file name follows the
// node type: requirement.md, task.md, or subtask.md.
func (s *Store) SpecPath(hid string) (string, error) {
	dir, err := s.TaskPath(hid)
	if err != nil {
		return "", err
	}
	switch {
	case strings.Contains(hid, ".SUB-"):
		return filepath.Join(dir, "subtask.md"), nil
	case strings.Contains(hid, ".TSK-"):
		return filepath.Join(dir, "task.md"), nil
	case strings.HasPrefix(hid, "REQ-"):
		return filepath.Join(dir, "requirement.md"), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidID, hid)
}

// URI returns the git:// URI of a task's outline or spec file.
func (s *Store) URI(hid, fileType string) (string, error) {
	var path string
	var err error
	switch fileType {
	case "outline":
		path, err = s.OutlinePath(hid)
	case "spec":
		path, err = s.SpecPath(hid)
	default:
		return "", fmt.Errorf("%w: file type %q", ErrInvalidID, fileType)
	}
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", fmt.Errorf("filestore: relativize %s: %w", path, err)
	}
	return "git://" + filepath.ToSlash(rel), nil
}

// WriteOutline stores a task's outline document as indented JSON.
func (s *Store) WriteOutline(hid string, outline map[string]interface{}) error {
	path, err := s.OutlinePath(hid)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(outline, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal outline of %s: %w", hid, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filestore: create dir for %s: %w", hid, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("filestore: write outline of %s: %w", hid, err)
	}
	log.Printf("filestore: wrote outline for %s", hid)
	return nil
}

// ReadOutline loads a task's outline document.
func (s *Store) ReadOutline(hid string) (map[string]interface{}, error) {
	path, err := s.OutlinePath(hid)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: outline of %s", ErrNotFound, hid)
		}
		return nil, fmt.Errorf("filestore: read outline of %s: %w", hid, err)
	}
	var outline map[string]interface{}
	if err := json.Unmarshal(data, &outline); err != nil {
		return nil, fmt.Errorf("filestore: parse outline of %s: %w", hid, err)
	}
	return outline, nil
}

// WriteSpec stores a task's spec file.
func (s *Store) WriteSpec(hid, content string) error {
	path, err := s.SpecPath(hid)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filestore: create dir for %s: %w", hid, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("filestore: write spec of %s: %w", hid, err)
	}
	log.Printf("filestore: wrote spec for %s", hid)
	return nil
}

// ReadSpec loads a task's spec file.
func (s *Store) ReadSpec(hid string) (string, error) {
	path, err := s.SpecPath(hid)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: spec of %s", ErrNotFound, hid)
		}
		return "", fmt.Errorf("filestore: read spec of %s: %w", hid, err)
	}
	return string(data), nil
}

// ListFiles returns every file under a task's directory, recursively. A task
// with no directory yet yields an empty list.
func (s *Store) ListFiles(hid string) ([]File, error) {
	dir, err := s.TaskPath(hid)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []File{}, nil
	}

	var files []File
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		typ := strings.TrimPrefix(filepath.Ext(path), ".")
		if typ == "" {
			typ = "txt"
		}
		files = append(files, File{
			Name: d.Name(),
			Path: rel,
			URI:  "git://" + filepath.ToSlash(rel),
			Type: typ,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: list files of %s: %w", hid, err)
	}
	return files, nil
}

// Init turns the root into a git repository if it is not one yet, and seeds
// a .gitignore.
func (s *Store) Init() error {
	if _, err := os.Stat(filepath.Join(s.root, ".git")); os.IsNotExist(err) {
		cmd := exec.Command("git", "init")
		cmd.Dir = s.root
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("filestore: git init: %w: %s", err, out)
		}
		log.Printf("filestore: initialized git repository at %s", s.root)
	}

	gitignore := filepath.Join(s.root, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte("*.tmp\n*.log\n"), 0o644); err != nil {
			return fmt.Errorf("filestore: write .gitignore: %w", err)
		}
	}
	return nil
}

// Commit stages everything and commits with the given message. A commit with
// nothing staged is a no-op, not an error.
func (s *Store) Commit(message string) error {
	add := exec.Command("git", "add", ".")
	add.Dir = s.root
	if out, err := add.CombinedOutput(); err != nil {
		return fmt.Errorf("filestore: git add: %w: %s", err, out)
	}

	commit := exec.Command("git", "commit", "-m", message)
	commit.Dir = s.root
	if out, err := commit.CombinedOutput(); err != nil {
		if strings.Contains(string(out), "nothing to commit") {
			log.Printf("filestore: no changes to commit")
			return nil
		}
		return fmt.Errorf("filestore: git commit: %w: %s", err, out)
	}
	log.Printf("filestore: committed changes: %s", message)
	return nil
}

// IsGitRepo reports whether the root has been initialized as a repository.
func (s *Store) IsGitRepo() bool {
	_, err := os.Stat(filepath.Join(s.root, ".git"))
	return err == nil
}

// FileCount counts all entries under the root, files and directories alike.
func (s *Store) FileCount() int {
	count := 0
	filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == s.root {
			return nil
		}
		count++
		return nil
	})
	return count
}
