package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/nsawada/reqtrack/internal/config"
	"github.com/nsawada/reqtrack/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		dc   config.DatabaseConfig
		want string
	}{
		{
			name: "no password",
			dc:   config.DatabaseConfig{User: "root", Host: "127.0.0.1", Port: 3306, Database: "reqtrack"},
			want: "root@tcp(127.0.0.1:3306)/reqtrack?parseTime=true",
		},
		{
			name: "with password",
			dc:   config.DatabaseConfig{User: "rq", Password: "pw", Host: "db.internal", Port: 3307, Database: "reqtrack_prod"},
			want: "rq:pw@tcp(db.internal:3307)/reqtrack_prod?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.dc); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error %q does not mention unsupported driver", err)
	}
}

func TestConnect_SQLiteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate() error: %v", err)
	}

	// Every migrated table should accept a basic insert/query round trip.
	task := models.Task{HierarchicalID: "REQ-001", Title: "first", Type: models.TypeRequirement, Status: models.StatusNotStarted}
	if err := gormDB.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	var count int64
	if err := gormDB.Model(&models.Task{}).Count(&count).Error; err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if count != 1 {
		t.Errorf("task count = %d, want 1", count)
	}
}

func TestAutoMigrate_UniqueHierarchicalID(t *testing.T) {
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "uniq.db")})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate() error: %v", err)
	}

	first := models.Task{HierarchicalID: "REQ-001", Title: "a", Type: models.TypeRequirement}
	if err := gormDB.Create(&first).Error; err != nil {
		t.Fatalf("create first: %v", err)
	}

	dup := models.Task{HierarchicalID: "REQ-001", Title: "b", Type: models.TypeRequirement}
	if err := gormDB.Create(&dup).Error; err == nil {
		t.Fatal("expected uniqueness violation for duplicate hierarchical ID, got nil")
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 9 {
		t.Errorf("len(AllModels()) = %d, want 9", got)
	}
}
