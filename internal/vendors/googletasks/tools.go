package googletasks

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/api/tasks/v1"

	"mcp-fleet/internal/toolkit"
)

const (
	statusOpen = "needsAction"
	statusDone = "completed"
)

func listArg() mcp.ToolOption {
	return mcp.WithString("tasklist_id", mcp.Description("Task list ID (default: the user's default list)"))
}

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("googletasks_list_task_lists",
				mcp.WithDescription("The user's task lists."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithNumber("max_results", mcp.Description("Max lists (default 100, max 1000)")),
				mcp.WithString("page_token", mcp.Description("Token from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListTaskLists),
		},
		{
			Tool: mcp.NewTool("googletasks_create_task_list",
				mcp.WithDescription("Create a task list."),
				mcp.WithString("title", mcp.Required(), mcp.Description("List title")),
			),
			Handler: toolkit.Handle(v.handleCreateTaskList),
		},
		{
			Tool: mcp.NewTool("googletasks_update_task_list",
				mcp.WithDescription("Rename a task list."),
				mcp.WithString("tasklist_id", mcp.Required(), mcp.Description("Task list ID")),
				mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
			),
			Handler: toolkit.Handle(v.handleUpdateTaskList),
		},
		{
			Tool: mcp.NewTool("googletasks_delete_task_list",
				mcp.WithDescription("Delete a task list and all its tasks."),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("tasklist_id", mcp.Required(), mcp.Description("Task list ID")),
			),
			Handler: toolkit.Handle(v.handleDeleteTaskList),
		},
		{
			Tool: mcp.NewTool("googletasks_list_tasks",
				mcp.WithDescription("Tasks of a list, optionally filtered by due date."),
				mcp.WithReadOnlyHintAnnotation(true),
				listArg(),
				mcp.WithBoolean("show_completed", mcp.Description("Include completed tasks (default true)")),
				mcp.WithBoolean("show_hidden", mcp.Description("Include hidden tasks (default false)")),
				mcp.WithString("due_min", mcp.Description("Earliest due date, YYYY-MM-DD or RFC 3339")),
				mcp.WithString("due_max", mcp.Description("Latest due date, YYYY-MM-DD or RFC 3339")),
				mcp.WithNumber("max_results", mcp.Description("Max tasks (default 100, max 100)")),
				mcp.WithString("page_token", mcp.Description("Token from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListTasks),
		},
		{
			Tool: mcp.NewTool("googletasks_get_task",
				mcp.WithDescription("One task."),
				mcp.WithReadOnlyHintAnnotation(true),
				listArg(),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: toolkit.Handle(v.handleGetTask),
		},
		{
			Tool: mcp.NewTool("googletasks_create_task",
				mcp.WithDescription("Add a task, optionally as a subtask or after a sibling."),
				listArg(),
				mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
				mcp.WithString("notes", mcp.Description("Notes")),
				mcp.WithString("due", mcp.Description("Due date, YYYY-MM-DD or RFC 3339")),
				mcp.WithString("parent", mcp.Description("Parent task ID")),
				mcp.WithString("previous", mcp.Description("Sibling task ID to insert after")),
			),
			Handler: toolkit.Handle(v.handleCreateTask),
		},
		{
			Tool: mcp.NewTool("googletasks_update_task",
				mcp.WithDescription("Change a task. Only provided fields change."),
				listArg(),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
				mcp.WithString("title", mcp.Description("New title")),
				mcp.WithString("notes", mcp.Description("New notes")),
				mcp.WithString("due", mcp.Description("New due date")),
				mcp.WithString("status", mcp.Enum(statusOpen, statusDone)),
			),
			Handler: toolkit.Handle(v.handleUpdateTask),
		},
		{
			Tool: mcp.NewTool("googletasks_complete_task",
				mcp.WithDescription("Mark a task completed."),
				listArg(),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: toolkit.Handle(v.handleCompleteTask),
		},
		{
			Tool: mcp.NewTool("googletasks_delete_task",
				mcp.WithDescription("Delete a task."),
				mcp.WithDestructiveHintAnnotation(true),
				listArg(),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: toolkit.Handle(v.handleDeleteTask),
		},
		{
			Tool: mcp.NewTool("googletasks_clear_completed",
				mcp.WithDescription("Hide all completed tasks of a list."),
				mcp.WithDestructiveHintAnnotation(true),
				listArg(),
			),
			Handler: toolkit.Handle(v.handleClearCompleted),
		},
	}
}

func tasklist(req mcp.CallToolRequest) string {
	if id := toolkit.OptionalString(req, "tasklist_id"); id != "" {
		return id
	}
	return defaultList
}

func (v *Vendor) handleListTaskLists(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "max_results", 100, 1, 1000)
	if err != nil {
		return nil, err
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	call := svc.Tasklists.List().MaxResults(int64(limit)).Context(ctx)
	if tok := toolkit.OptionalString(req, "page_token"); tok != "" {
		call = call.PageToken(tok)
	}
	var res *tasks.TaskLists
	err = v.auth.Do(ctx, "task lists", func() (err error) {
		res, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	lists := make([]map[string]any, 0, len(res.Items))
	for _, l := range res.Items {
		lists = append(lists, taskListOut(l))
	}
	return map[string]any{"task_lists": lists, "count": len(lists), "next_page_token": res.NextPageToken}, nil
}

func (v *Vendor) handleCreateTaskList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	title, err := toolkit.RequireString(req, "title")
	if err != nil {
		return nil, err
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	var l *tasks.TaskList
	err = v.auth.Do(ctx, "task list", func() (err error) {
		l, err = svc.Tasklists.Insert(&tasks.TaskList{Title: title}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return taskListOut(l), nil
}

func (v *Vendor) handleUpdateTaskList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "tasklist_id")
	if err != nil {
		return nil, err
	}
	title, err := toolkit.RequireString(req, "title")
	if err != nil {
		return nil, err
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	var l *tasks.TaskList
	err = v.auth.Do(ctx, "task list "+id, func() (err error) {
		l, err = svc.Tasklists.Patch(id, &tasks.TaskList{Title: title}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return taskListOut(l), nil
}

func (v *Vendor) handleDeleteTaskList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "tasklist_id")
	if err != nil {
		return nil, err
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	err = v.auth.Do(ctx, "task list "+id, func() error {
		return svc.Tasklists.Delete(id).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "deleted": id}, nil
}

func (v *Vendor) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "max_results", 100, 1, 100)
	if err != nil {
		return nil, err
	}
	list := tasklist(req)
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	call := svc.Tasks.List(list).
		MaxResults(int64(limit)).
		ShowCompleted(toolkit.BoolArg(req, "show_completed", true)).
		ShowHidden(toolkit.BoolArg(req, "show_hidden", false)).
		Context(ctx)
	if s := toolkit.OptionalString(req, "due_min"); s != "" {
		d, err := due(s)
		if err != nil {
			return nil, err
		}
		call = call.DueMin(d)
	}
	if s := toolkit.OptionalString(req, "due_max"); s != "" {
		d, err := due(s)
		if err != nil {
			return nil, err
		}
		call = call.DueMax(d)
	}
	if tok := toolkit.OptionalString(req, "page_token"); tok != "" {
		call = call.PageToken(tok)
	}
	var res *tasks.Tasks
	err = v.auth.Do(ctx, "task list "+list, func() (err error) {
		res, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(res.Items))
	for _, t := range res.Items {
		items = append(items, taskOut(t))
	}
	return map[string]any{"tasks": items, "count": len(items), "next_page_token": res.NextPageToken}, nil
}

func (v *Vendor) handleGetTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	var t *tasks.Task
	err = v.auth.Do(ctx, "task "+id, func() (err error) {
		t, err = svc.Tasks.Get(tasklist(req), id).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return taskOut(t), nil
}

func (v *Vendor) handleCreateTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	title, err := toolkit.RequireString(req, "title")
	if err != nil {
		return nil, err
	}
	t := &tasks.Task{Title: title, Notes: toolkit.OptionalString(req, "notes")}
	if s := toolkit.OptionalString(req, "due"); s != "" {
		if t.Due, err = due(s); err != nil {
			return nil, err
		}
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	list := tasklist(req)
	call := svc.Tasks.Insert(list, t).Context(ctx)
	if p := toolkit.OptionalString(req, "parent"); p != "" {
		call = call.Parent(p)
	}
	if p := toolkit.OptionalString(req, "previous"); p != "" {
		call = call.Previous(p)
	}
	var created *tasks.Task
	err = v.auth.Do(ctx, "task list "+list, func() (err error) {
		created, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return taskOut(created), nil
}

// patch applies t to a task. Reopening a task also clears its completion
// time, which Google otherwise keeps.
func (v *Vendor) patch(ctx context.Context, list, id string, t *tasks.Task) (*tasks.Task, error) {
	if t.Status == statusOpen {
		t.NullFields = append(t.NullFields, "Completed")
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	var out *tasks.Task
	err = v.auth.Do(ctx, "task "+id, func() (err error) {
		out, err = svc.Tasks.Patch(list, id, t).Context(ctx).Do()
		return err
	})
	return out, err
}

func (v *Vendor) handleUpdateTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	t := &tasks.Task{
		Title:  toolkit.OptionalString(req, "title"),
		Notes:  toolkit.OptionalString(req, "notes"),
		Status: toolkit.OptionalString(req, "status"),
	}
	if s := toolkit.OptionalString(req, "due"); s != "" {
		if t.Due, err = due(s); err != nil {
			return nil, err
		}
	}
	if t.Status != "" && t.Status != statusOpen && t.Status != statusDone {
		return nil, toolkit.Invalid("status must be %s or %s", statusOpen, statusDone)
	}
	if t.Title == "" && t.Notes == "" && t.Status == "" && t.Due == "" {
		return nil, toolkit.Invalid("nothing to update")
	}
	updated, err := v.patch(ctx, tasklist(req), id, t)
	if err != nil {
		return nil, err
	}
	return taskOut(updated), nil
}

func (v *Vendor) handleCompleteTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	updated, err := v.patch(ctx, tasklist(req), id, &tasks.Task{Status: statusDone})
	if err != nil {
		return nil, err
	}
	return taskOut(updated), nil
}

func (v *Vendor) handleDeleteTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	err = v.auth.Do(ctx, "task "+id, func() error {
		return svc.Tasks.Delete(tasklist(req), id).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "deleted": id}, nil
}

func (v *Vendor) handleClearCompleted(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	list := tasklist(req)
	svc, err := v.service(ctx)
	if err != nil {
		return nil, err
	}
	err = v.auth.Do(ctx, "task list "+list, func() error {
		return svc.Tasks.Clear(list).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "tasklist_id": list}, nil
}
