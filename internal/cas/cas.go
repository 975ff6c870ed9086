// Package cas implements a content-addressed artifact store. Blobs live on
// disk under <root>/sha256/<hh>/<hash> and are indexed in the database;
// storing identical bytes twice is a no-op that returns the same hash.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nsawada/reqtrack/internal/hierid"
	"github.com/nsawada/reqtrack/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound reports a hash that resolves to no stored artifact.
var ErrNotFound = errors.New("cas: artifact not found")

// Store is a content-addressed artifact store rooted at a directory.
type Store struct {
	db   *gorm.DB
	root string
}

// Info describes a stored artifact.
type Info struct {
	SHA256        string    `json:"sha256"`
	MediaType     string    `json:"media_type"`
	BytesSize     int64     `json:"bytes_size"`
	SourceTaskHID string    `json:"source_task_hid,omitempty"`
	Purpose       string    `json:"purpose,omitempty"`
	Role          string    `json:"role,omitempty"`
	URI           string    `json:"cas_uri"`
	Path          string    `json:"cas_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// New creates a Store rooted at root, creating the directory if needed.
func New(db *gorm.DB, root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cas: create root %s: %w", root, err)
	}
	return &Store{db: db, root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// StoreBytes writes content into the store and returns its SHA-256 hex hash.
// Idempotent: storing bytes that are already indexed returns the same hash,
// including when a concurrent store wins the index insert first.
func (s *Store) StoreBytes(content []byte, mediaType, sourceTaskHID, purpose string) (string, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	// Write the blob before indexing; identical content lands on the same
	// path, so a lost race just rewrote the same bytes.
	path := s.blobPath(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cas: create blob dir for %s: %w", hash, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("cas: write blob %s: %w", hash, err)
	}

	artifact := models.Artifact{
		SHA256:        hash,
		MediaType:     mediaType,
		BytesSize:     int64(len(content)),
		SourceTaskHID: sourceTaskHID,
		Purpose:       purpose,
	}
	if err := s.db.Create(&artifact).Error; err != nil {
		if hierid.IsUniqueViolation(err) {
			return hash, nil
		}
		return "", fmt.Errorf("cas: index blob %s: %w", hash, err)
	}
	return hash, nil
}

// Retrieve reads an artifact's bytes by hash.
func (s *Store) Retrieve(hash string) ([]byte, error) {
	path := s.blobPath(hash)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("cas: read blob %s: %w", hash, err)
	}
	return data, nil
}

// GetInfo returns metadata for a stored artifact.
func (s *Store) GetInfo(hash string) (*Info, error) {
	var artifact models.Artifact
	if err := s.db.Where("sha256 = ?", hash).First(&artifact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("cas: info %s: %w", hash, err)
	}
	return s.info(&artifact, ""), nil
}

// Link attaches an artifact to a task under a role. Idempotent for the same
// (task, artifact, role) triple, including under concurrent linkers; the
// unique index turns the duplicate insert into a no-op.
func (s *Store) Link(taskHID, hash, role string) error {
	var artifact models.Artifact
	if err := s.db.Where("sha256 = ?", hash).First(&artifact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return fmt.Errorf("cas: link lookup %s: %w", hash, err)
	}

	link := models.TaskArtifactLink{TaskHID: taskHID, ArtifactID: artifact.ID, Role: role}
	if err := s.db.Create(&link).Error; err != nil {
		if hierid.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("cas: link %s to %s: %w", hash, taskHID, err)
	}
	return nil
}

// TaskArtifacts returns all artifacts linked to a task, optionally filtered
// by role.
func (s *Store) TaskArtifacts(taskHID, role string) ([]Info, error) {
	q := s.db.Preload("Artifact").Where("task_hid = ?", taskHID)
	if role != "" {
		q = q.Where("role = ?", role)
	}

	var links []models.TaskArtifactLink
	if err := q.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("cas: artifacts of %s: %w", taskHID, err)
	}

	infos := make([]Info, 0, len(links))
	for i := range links {
		infos = append(infos, *s.info(&links[i].Artifact, links[i].Role))
	}
	return infos, nil
}

// Delete removes an artifact: blob file, task links, and index row.
func (s *Store) Delete(hash string) error {
	var artifact models.Artifact
	if err := s.db.Where("sha256 = ?", hash).First(&artifact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return fmt.Errorf("cas: delete lookup %s: %w", hash, err)
	}

	if err := os.Remove(s.blobPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cas: remove blob %s: %w", hash, err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("artifact_id = ?", artifact.ID).Delete(&models.TaskArtifactLink{}).Error; err != nil {
			return fmt.Errorf("cas: delete links of %s: %w", hash, err)
		}
		if err := tx.Delete(&artifact).Error; err != nil {
			return fmt.Errorf("cas: delete index row %s: %w", hash, err)
		}
		return nil
	})
}

// URI returns the cas:// URI for a hash.
func URI(hash string) string {
	return fmt.Sprintf("cas://sha256/%s/%s", hash[:2], hash)
}

func (s *Store) blobPath(hash string) string {
	return filepath.Join(s.root, "sha256", hash[:2], hash)
}

func (s *Store) info(a *models.Artifact, role string) *Info {
	return &Info{
		SHA256:        a.SHA256,
		MediaType:     a.MediaType,
		BytesSize:     a.BytesSize,
		SourceTaskHID: a.SourceTaskHID,
		Purpose:       a.Purpose,
		Role:          role,
		URI:           URI(a.SHA256),
		Path:          s.blobPath(a.SHA256),
		CreatedAt:     a.CreatedAt,
	}
}
