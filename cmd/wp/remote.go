package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	workplacesdk "workplace/sdk/go"
)

func (c *cli) client() *workplacesdk.Client {
	return workplacesdk.New(c.settings.Remote.URL)
}

func newTable(w io.Writer, header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row(header))
	return tw
}

func relTime(t time.Time) string {
	return humanize.RelTime(t, time.Now(), "ago", "from now")
}

func (c *cli) printTask(w io.Writer, t workplacesdk.Task) error {
	if c.jsonOutput() {
		return printJSON(w, t)
	}
	return c.printTasks(w, []workplacesdk.Task{t})
}

func (c *cli) printTasks(w io.Writer, tasks []workplacesdk.Task) error {
	if c.jsonOutput() {
		return printJSON(w, tasks)
	}
	tw := newTable(w, "ID", "Title", "Stage", "Priority", "Model", "Due", "Tags")
	for _, t := range tasks {
		due := ""
		if t.DueAt != nil {
			due = relTime(*t.DueAt)
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Stage, t.Priority, t.ModelName, due, strings.Join(t.Tags, ",")})
	}
	tw.Render()
	return nil
}

func (c *cli) taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks move through intake, research, execution, review and complete. Any stage may be set directly; advance and back step one stage.",
	}
	cmd.AddCommand(c.taskListCmd())
	cmd.AddCommand(c.taskShowCmd())
	cmd.AddCommand(c.taskCreateCmd())
	cmd.AddCommand(c.taskStageCmd())
	cmd.AddCommand(c.taskStepCmd("advance", "Move a task to the next stage", (*workplacesdk.Client).Advance))
	cmd.AddCommand(c.taskStepCmd("back", "Move a task to the previous stage", (*workplacesdk.Client).Back))
	cmd.AddCommand(c.taskAssignCmd())
	return cmd
}

func (c *cli) taskListCmd() *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := c.client().Tasks(cmd.Context(), stage)
			if err != nil {
				return err
			}
			return c.printTasks(cmd.OutOrStdout(), tasks)
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "stage filter")
	return cmd
}

func (c *cli) taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.client().Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), t)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendRows([]table.Row{
				{"ID", t.ID},
				{"Title", t.Title},
				{"Objective", t.Objective},
				{"Stage", t.Stage},
				{"Priority", t.Priority},
				{"Model", t.ModelName},
				{"Created", relTime(t.CreatedAt)},
				{"Tags", strings.Join(t.Tags, ", ")},
				{"Blockers", t.Blockers},
			})
			tw.Render()
			return nil
		},
	}
}

func (c *cli) taskCreateCmd() *cobra.Command {
	var req workplacesdk.CreateTaskRequest
	var due time.Duration
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Title == "" || req.Objective == "" {
				return fmt.Errorf("--title and --objective required")
			}
			if due > 0 {
				at := time.Now().Add(due).UTC()
				req.DueAt = &at
			}
			t, err := c.client().CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printTask(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "task title (more than 4 characters)")
	cmd.Flags().StringVar(&req.Objective, "objective", "", "task objective (more than 8 characters)")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "low, medium or high (default medium)")
	cmd.Flags().StringVar(&req.Stage, "stage", "", "initial stage (default intake)")
	cmd.Flags().StringVar(&req.AssignedModelID, "model", "", "assigned model id")
	cmd.Flags().StringVar(&req.TagsInput, "tags", "", "comma separated tags")
	cmd.Flags().StringVar(&req.Blockers, "blockers", "", "blockers")
	cmd.Flags().DurationVar(&due, "due-in", 0, "due after this duration, e.g. 24h")
	return cmd
}

func (c *cli) taskStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <id> <stage>",
		Short: "Set a task's stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.client().SetStage(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.printTask(cmd.OutOrStdout(), t)
		},
	}
}

func (c *cli) taskStepCmd(use, short string, step func(*workplacesdk.Client, context.Context, string) (workplacesdk.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := step(c.client(), cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printTask(cmd.OutOrStdout(), t)
		},
	}
}

func (c *cli) taskAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> [model-id]",
		Short: "Assign a task to a model; omit the model to clear",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID := ""
			if len(args) == 2 {
				modelID = args[1]
			}
			t, err := c.client().Assign(cmd.Context(), args[0], modelID)
			if err != nil {
				return err
			}
			return c.printTask(cmd.OutOrStdout(), t)
		},
	}
}

func (c *cli) modelCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "model", Short: "Inspect the model fleet"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List models",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := c.client().Models(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), models)
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "Name", "Provider", "Modality", "Status", "Load", "Tasks", "Last sync")
			for _, m := range models {
				tw.AppendRow(table.Row{m.ID, m.Name, m.Provider, m.Modality, m.Status, fmt.Sprintf("%.0f%%", m.Load*100), m.AssignedTasks, m.LastSync})
			}
			tw.Render()
			return nil
		},
	})

	var status string
	var load float64
	set := &cobra.Command{
		Use:   "set <id>",
		Short: "Update a model's status or load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var statusPtr *string
			var loadPtr *float64
			if cmd.Flags().Changed("status") {
				statusPtr = &status
			}
			if cmd.Flags().Changed("load") {
				loadPtr = &load
			}
			if statusPtr == nil && loadPtr == nil {
				return fmt.Errorf("--status or --load required")
			}
			m, err := c.client().UpdateModel(cmd.Context(), args[0], statusPtr, loadPtr)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), m)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s at %.0f%% load\n", m.Name, m.Status, m.Load*100)
			return nil
		},
	}
	set.Flags().StringVar(&status, "status", "", "online, degraded, training or offline")
	set.Flags().Float64Var(&load, "load", 0, "load between 0 and 1")
	cmd.AddCommand(set)
	return cmd
}

func (c *cli) automationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "automation", Short: "Manage automations"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List automations",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.client().Automations(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), items)
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "Name", "Status", "Trigger", "Success")
			for _, a := range items {
				tw.AppendRow(table.Row{a.ID, a.Name, a.Status, a.Trigger, fmt.Sprintf("%.0f%%", a.SuccessRate*100)})
			}
			tw.Render()
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <id>",
		Short: "Pause or reactivate an automation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.client().ToggleAutomation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), a)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", a.Name, a.Status)
			return nil
		},
	})
	return cmd
}

func (c *cli) printActivity(w io.Writer, items []workplacesdk.Activity) {
	tw := newTable(w, "When", "Channel", "Actor", "Message", "Task")
	for _, e := range items {
		tw.AppendRow(table.Row{relTime(e.Timestamp), e.Channel, e.Actor, e.Message, e.TaskID})
	}
	tw.Render()
}

func (c *cli) logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
		Long:  "The audit feed of everything that happened, newest first: task changes, claims, automation toggles and manual notes.",
	}
	cmd.AddCommand(c.logTailCmd())
	cmd.AddCommand(c.logAddCmd())
	return cmd
}

func (c *cli) logTailCmd() *cobra.Command {
	var q workplacesdk.ActivityQuery
	var follow bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.client()
			since := time.Now()
			page, err := client.ActivityPage(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.jsonOutput() {
				if err := printJSON(out, page); err != nil {
					return err
				}
			} else {
				c.printActivity(out, page.Items)
				if page.NextCursor != "" && !follow {
					fmt.Fprintf(out, "more: --cursor %s\n", page.NextCursor)
				}
			}
			if !follow {
				return nil
			}
			f := newTailFollower(q, page.Items, since)
			return client.Stream(cmd.Context(), "activity", func(st workplacesdk.State) error {
				for _, e := range f.fresh(st.Activity) {
					if c.jsonOutput() {
						if err := printJSON(out, e); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(out, "%s [%s] %s: %s\n", e.Timestamp.Local().Format(time.TimeOnly), e.Channel, e.Actor, e.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 20, "number of entries")
	cmd.Flags().StringVar(&q.Channel, "channel", "", "channel filter (system, model, human)")
	cmd.Flags().StringVar(&q.TaskID, "task", "", "task id filter")
	cmd.Flags().StringVar(&q.Actor, "actor", "", "actor filter")
	cmd.Flags().StringVar(&q.Cursor, "cursor", "", "continue from a previous page")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new entries")
	return cmd
}

// tailFollower decides which streamed entries are new to a follow session.
// Every snapshot carries the full feed, so entries are deduplicated by id.
// The first snapshot may also hold entries logged after the initial page
// was fetched; those newer than the page are printed, the rest only marked.
type tailFollower struct {
	q      workplacesdk.ActivityQuery
	seen   map[string]bool
	since  time.Time
	primed bool
}

func newTailFollower(q workplacesdk.ActivityQuery, page []workplacesdk.Activity, fetched time.Time) *tailFollower {
	f := &tailFollower{q: q, seen: map[string]bool{}, since: fetched}
	for _, e := range page {
		f.seen[e.ID] = true
	}
	// A cursor page is historical; only the head page marks where the feed stood.
	if q.Cursor == "" && len(page) > 0 {
		f.since = page[0].Timestamp
	}
	return f
}

// fresh returns the unseen matching entries of a newest-first feed, oldest first.
func (f *tailFollower) fresh(feed []workplacesdk.Activity) []workplacesdk.Activity {
	var out []workplacesdk.Activity
	for i := len(feed) - 1; i >= 0; i-- {
		e := feed[i]
		if f.seen[e.ID] {
			continue
		}
		f.seen[e.ID] = true
		if !f.primed && e.Timestamp.Before(f.since) {
			continue
		}
		if matches(f.q, e) {
			out = append(out, e)
		}
	}
	f.primed = true
	return out
}

// matches applies the tail filters to a streamed entry.
func matches(q workplacesdk.ActivityQuery, e workplacesdk.Activity) bool {
	return (q.Channel == "" || q.Channel == e.Channel) &&
		(q.TaskID == "" || q.TaskID == e.TaskID) &&
		(q.Actor == "" || q.Actor == e.Actor)
}

func (c *cli) logAddCmd() *cobra.Command {
	var req workplacesdk.LogEventRequest
	cmd := &cobra.Command{
		Use:   "add <message>",
		Short: "Record a note in the activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Message = args[0]
			if req.Actor == "" {
				req.Actor = c.settings.Operator.Name
			}
			e, err := c.client().LogEvent(cmd.Context(), req)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), e)
			}
			c.printActivity(cmd.OutOrStdout(), []workplacesdk.Activity{e})
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Actor, "actor", "", "actor (defaults to operator.name)")
	cmd.Flags().StringVar(&req.Channel, "channel", "human", "system, model or human")
	cmd.Flags().StringVar(&req.TaskID, "task", "", "related task id")
	return cmd
}

func (c *cli) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show workspace metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.client().Metrics(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), m)
			}
			intake := "never"
			if m.LastIntake != nil {
				intake = relTime(*m.LastIntake)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendRows([]table.Row{
				{"Models online", fmt.Sprintf("%d/%d", m.ModelsOnline, m.ModelsTotal)},
				{"Active tasks", m.ActiveTasks},
				{"Fleet load", fmt.Sprintf("%.0f%%", m.FleetLoad*100)},
				{"Last intake", intake},
				{"Version", m.Version},
			})
			tw.Render()
			return nil
		},
	}
}
