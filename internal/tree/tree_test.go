package tree

import (
	"errors"
	"testing"

	"github.com/nsawada/reqtrack/internal/models"
	"github.com/nsawada/reqtrack/internal/task"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Task{}, &models.TaskHistory{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seedTree builds REQ-001 with two tasks, the first task having one subtask.
func seedTree(t *testing.T, db *gorm.DB) *models.Task {
	t.Helper()
	req, err := task.Create(db, task.CreateOpts{Title: "auth", Type: models.TypeRequirement})
	if err != nil {
		t.Fatalf("create requirement: %v", err)
	}
	t1, err := task.Create(db, task.CreateOpts{Title: "login", Type: models.TypeTask, ParentID: &req.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := task.Create(db, task.CreateOpts{Title: "logout", Type: models.TypeTask, ParentID: &req.ID}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := task.Create(db, task.CreateOpts{Title: "session check", Type: models.TypeSubtask, ParentID: &t1.ID}); err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	return req
}

func TestSubtree_RootNotFound(t *testing.T) {
	db := testDB(t)
	_, err := Subtree(db, "REQ-404", 3)
	if !errors.Is(err, task.ErrNotFound) {
		t.Errorf("error = %v, want task.ErrNotFound", err)
	}
}

func TestSubtree_DepthOne(t *testing.T) {
	db := testDB(t)
	seedTree(t, db)

	node, err := Subtree(db, "REQ-001", 1)
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	if node.HierarchicalID != "REQ-001" || node.Title != "auth" {
		t.Errorf("root = %+v, want REQ-001/auth", node)
	}
	if node.Children == nil {
		t.Error("Children is nil, want empty slice")
	}
	if len(node.Children) != 0 {
		t.Errorf("children at depth 1 = %d, want 0", len(node.Children))
	}
}

func TestSubtree_DepthTwo(t *testing.T) {
	db := testDB(t)
	seedTree(t, db)

	node, err := Subtree(db, "REQ-001", 2)
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	if len(node.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(node.Children))
	}
	if node.Children[0].HierarchicalID != "REQ-001.TSK-001" {
		t.Errorf("first child = %q, want REQ-001.TSK-001", node.Children[0].HierarchicalID)
	}
	// One level only: the grandchild subtask is not materialized.
	for _, child := range node.Children {
		if len(child.Children) != 0 {
			t.Errorf("grandchildren of %s = %d at depth 2, want 0", child.HierarchicalID, len(child.Children))
		}
	}
}

func TestSubtree_DepthThree(t *testing.T) {
	db := testDB(t)
	seedTree(t, db)

	node, err := Subtree(db, "REQ-001", 3)
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	login := node.Children[0]
	if len(login.Children) != 1 {
		t.Fatalf("subtasks of login = %d, want 1", len(login.Children))
	}
	if login.Children[0].HierarchicalID != "REQ-001.TSK-001.SUB-001" {
		t.Errorf("subtask = %q, want REQ-001.TSK-001.SUB-001", login.Children[0].HierarchicalID)
	}
}

func TestSubtree_NonPositiveDepth(t *testing.T) {
	db := testDB(t)
	seedTree(t, db)

	for _, depth := range []int{0, -1, -100} {
		node, err := Subtree(db, "REQ-001", depth)
		if err != nil {
			t.Fatalf("Subtree(depth=%d): %v", depth, err)
		}
		if len(node.Children) != 0 {
			t.Errorf("depth %d children = %d, want 0 (treated as depth 1)", depth, len(node.Children))
		}
	}
}

func TestSubtree_MidTreeRoot(t *testing.T) {
	db := testDB(t)
	seedTree(t, db)

	node, err := Subtree(db, "REQ-001.TSK-001", 2)
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	if node.Type != models.TypeTask {
		t.Errorf("root type = %q, want task", node.Type)
	}
	if len(node.Children) != 1 || node.Children[0].Type != models.TypeSubtask {
		t.Errorf("children = %+v, want one subtask", node.Children)
	}
}

func TestSubtree_DepthBeyondTree(t *testing.T) {
	db := testDB(t)
	seedTree(t, db)

	// Depth far beyond the actual tree must still terminate.
	node, err := Subtree(db, "REQ-001", 50)
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	if len(node.Children) != 2 {
		t.Errorf("children = %d, want 2", len(node.Children))
	}
	sub := node.Children[0].Children[0]
	if len(sub.Children) != 0 {
		t.Errorf("leaf children = %d, want 0", len(sub.Children))
	}
}
