package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/config"
	"github.com/nsawada/reqtrack/internal/hooks"
	"github.com/nsawada/reqtrack/internal/models"
	"github.com/nsawada/reqtrack/internal/task"
	"github.com/nsawada/reqtrack/internal/tree"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskTreeCmd())
	cmd.AddCommand(newTaskMoveCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

// resolveTask accepts either a numeric database ID or a hierarchical ID.
func resolveTask(db *gorm.DB, ref string) (*models.Task, error) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		return task.Get(db, uint(id))
	}
	return task.GetByHierarchicalID(db, strings.ToUpper(ref))
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		taskType    string
		description string
		parent      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a requirement, task, or subtask",
		Long:  "Creates a work item with an auto-allocated hierarchical ID. Tasks and subtasks need --parent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			opts := task.CreateOpts{
				Title:       title,
				Description: description,
				Type:        taskType,
			}
			if parent != "" {
				p, err := resolveTask(gormDB, parent)
				if err != nil {
					return err
				}
				opts.ParentID = &p.ID
			}

			t, err := task.Create(gormDB, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s %s\n", t.Type, t.HierarchicalID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().StringVar(&title, "title", "", "title (required)")
	cmd.Flags().StringVar(&taskType, "type", "requirement", "type (requirement, task, subtask)")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task ID or hierarchical ID")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		taskType   string
		status     string
		query      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "Lists tasks with optional filters. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			tasks, err := task.Search(gormDB, task.SearchFilters{
				Type:   taskType,
				Status: status,
				Query:  query,
				Limit:  200,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tHIERARCHICAL ID\tTITLE\tTYPE\tSTATUS")
			for _, t := range tasks {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					t.ID, t.HierarchicalID, truncate(t.Title, 40), t.Type, t.Status)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().StringVar(&taskType, "type", "", "filter by type")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVarP(&query, "query", "q", "", "substring match on title or description")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Long:  "Displays full details of a task including comments and status history. Accepts a numeric or hierarchical ID.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := resolveTask(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:           %d\n", t.ID)
			fmt.Fprintf(out, "Hierarchical: %s\n", t.HierarchicalID)
			fmt.Fprintf(out, "Title:        %s\n", t.Title)
			fmt.Fprintf(out, "Type:         %s\n", t.Type)
			fmt.Fprintf(out, "Status:       %s\n", t.Status)
			if t.ParentID != nil {
				parent, err := task.Get(gormDB, *t.ParentID)
				if err == nil {
					fmt.Fprintf(out, "Parent:       %s\n", parent.HierarchicalID)
				}
			}
			fmt.Fprintf(out, "Created:      %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Updated:      %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))

			if t.Description != "" {
				fmt.Fprintf(out, "\nDescription:\n%s\n", t.Description)
			}

			comments, err := task.Comments(gormDB, t.ID, 0, 20)
			if err == nil && len(comments) > 0 {
				fmt.Fprintln(out, "\nComments:")
				for _, cm := range comments {
					fmt.Fprintf(out, "  [%s] %s: %s\n", cm.CreatedAt.Format("2006-01-02 15:04"), cm.Type, cm.Body)
				}
			}

			history, err := task.History(gormDB, t.ID, 0, 20)
			if err == nil && len(history) > 0 {
				fmt.Fprintln(out, "\nHistory:")
				for _, h := range history {
					line := h.EventType
					if h.EventType == "status_change" {
						line = fmt.Sprintf("%s → %s", h.FromStatus, h.ToStatus)
					}
					if h.Note != "" {
						line += " (" + h.Note + ")"
					}
					fmt.Fprintf(out, "  [%s] %s\n", h.CreatedAt.Format("2006-01-02 15:04"), line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task title or description",
		Long:  "Updates descriptive fields. Status changes go through 'rt task status'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := resolveTask(gormDB, args[0])
			if err != nil {
				return err
			}

			opts := task.UpdateOpts{}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if opts.Title == nil && opts.Description == nil {
				return fmt.Errorf("no fields to update; use --title or --description")
			}

			if _, err := task.Update(gormDB, t.ID, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", t.HierarchicalID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var (
		configPath string
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "status <id> <new-status>",
		Short: "Move a task to a new status",
		Long:  "Applies a status transition. Invalid transitions are rejected; side effects like test templates run after the change commits.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := resolveTask(gormDB, args[0])
			if err != nil {
				return err
			}

			hook, err := transitionHook(cfg, gormDB)
			if err != nil {
				return err
			}
			updated, err := task.Transition(gormDB, hook, t.ID, args[1], reason)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s → %s\n", updated.HierarchicalID, t.Status, updated.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the task history")
	return cmd
}

// transitionHook wires the artifact-producing hook service.
func transitionHook(cfg *config.Config, gormDB *gorm.DB) (task.Hook, error) {
	store, err := cas.New(gormDB, cfg.CASRootPath())
	if err != nil {
		return nil, err
	}
	return hooks.New(store), nil
}

func newTaskTreeCmd() *cobra.Command {
	var (
		configPath string
		depth      int
	)

	cmd := &cobra.Command{
		Use:   "tree <hierarchical-id>",
		Short: "Print a requirement subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			node, err := tree.Subtree(gormDB, strings.ToUpper(args[0]), depth)
			if err != nil {
				return err
			}
			printTree(cmd, node, 0)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().IntVarP(&depth, "depth", "d", 3, "maximum depth to expand")
	return cmd
}

func printTree(cmd *cobra.Command, node *tree.Node, indent int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s%s  %s [%s]\n",
		strings.Repeat("  ", indent), node.HierarchicalID, truncate(node.Title, 50), node.Status)
	for _, child := range node.Children {
		printTree(cmd, child, indent+1)
	}
}

func newTaskMoveCmd() *cobra.Command {
	var (
		configPath string
		parent     string
	)

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Re-parent a task",
		Long:  "Moves a task under a new parent of the matching type. The hierarchical ID does not change.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := resolveTask(gormDB, args[0])
			if err != nil {
				return err
			}
			p, err := resolveTask(gormDB, parent)
			if err != nil {
				return err
			}

			if _, err := task.Move(gormDB, t.ID, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s under %s\n", t.HierarchicalID, p.HierarchicalID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().StringVar(&parent, "parent", "", "new parent ID or hierarchical ID (required)")
	cmd.MarkFlagRequired("parent")
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and everything attached to it",
		Long:  "Deletes a task with its history, comments, reviews, and artifact links.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := resolveTask(gormDB, args[0])
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Refusing to delete %s without --yes\n", t.HierarchicalID)
				return nil
			}
			if err := task.Delete(gormDB, t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", t.HierarchicalID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
