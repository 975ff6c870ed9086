// Package tree reconstructs bounded-depth subtree views from the persisted
// parent-pointer representation.
package tree

import (
	"fmt"

	"github.com/nsawada/reqtrack/internal/models"
	"github.com/nsawada/reqtrack/internal/task"
	"gorm.io/gorm"
)

// Node is one task in a subtree view.
type Node struct {
	HierarchicalID string  `json:"hierarchical_id"`
	Title          string  `json:"title"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	Children       []*Node `json:"children"`
}

// Subtree returns the subtree rooted at hierarchicalID, expanded to maxDepth
// levels. Depth 1 is the root alone; each increment expands one more
// generation. Depths below 1 are treated as 1. Children are ordered by
// hierarchical ID. Returns task.ErrNotFound if the root does not exist.
func Subtree(db *gorm.DB, hierarchicalID string, maxDepth int) (*Node, error) {
	root, err := task.GetByHierarchicalID(db, hierarchicalID)
	if err != nil {
		return nil, err
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return expand(db, root, maxDepth)
}

// expand walks children level by level. The walk always terminates: each
// recursion step decrements depth, and the tree is finite.
func expand(db *gorm.DB, t *models.Task, depth int) (*Node, error) {
	node := &Node{
		HierarchicalID: t.HierarchicalID,
		Title:          t.Title,
		Type:           t.Type,
		Status:         t.Status,
		Children:       []*Node{},
	}
	if depth <= 1 {
		return node, nil
	}

	var children []models.Task
	if err := db.Where("parent_id = ?", t.ID).
		Order("hierarchical_id ASC").Find(&children).Error; err != nil {
		return nil, fmt.Errorf("tree: children of %s: %w", t.HierarchicalID, err)
	}
	for i := range children {
		child, err := expand(db, &children[i], depth-1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
