package motion

import (
	"context"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
)

// taskOptions are the writable task fields shared by create and update.
var taskOptions = []mcp.ToolOption{
	mcp.WithString("description", mcp.Description("Task description, markdown allowed")),
	mcp.WithString("project_id", mcp.Description("Project to file the task under")),
	mcp.WithString("assignee_id", mcp.Description("User ID of the assignee")),
	mcp.WithString("status", mcp.Description("Status name as configured in the workspace")),
	mcp.WithString("priority", mcp.Description("ASAP, HIGH, MEDIUM or LOW"), mcp.Enum("ASAP", "HIGH", "MEDIUM", "LOW")),
	mcp.WithString("duration", mcp.Description(`Minutes, a duration like "1h30m", NONE or REMINDER`)),
	mcp.WithString("due_date", mcp.Description("Deadline, ISO 8601 date or timestamp")),
	mcp.WithArray("labels", mcp.WithStringItems(), mcp.Description("Label names")),
	mcp.WithBoolean("auto_schedule", mcp.Description("Let Motion schedule the task on the calendar")),
	mcp.WithString("start_date", mcp.Description("Earliest day to schedule, ISO 8601 date")),
	mcp.WithString("deadline_type", mcp.Description("HARD, SOFT or NONE (default SOFT)"), mcp.Enum("HARD", "SOFT", "NONE")),
	mcp.WithString("schedule", mcp.Description(`Schedule name (default "Work Hours")`)),
}

func withTaskOptions(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts, taskOptions...)
}

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("motion_list_workspaces",
				mcp.WithDescription("Workspaces the API key can access."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListWorkspaces),
		},
		{
			Tool: mcp.NewTool("motion_list_projects",
				mcp.WithDescription("Projects in a workspace."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace ID")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListProjects),
		},
		{
			Tool: mcp.NewTool("motion_create_project",
				mcp.WithDescription("Create a project in a workspace."),
				mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace ID")),
				mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
				mcp.WithString("description", mcp.Description("Project description")),
				mcp.WithString("priority", mcp.Description("ASAP, HIGH, MEDIUM or LOW")),
				mcp.WithString("due_date", mcp.Description("Deadline, ISO 8601 date or timestamp")),
				mcp.WithArray("labels", mcp.WithStringItems(), mcp.Description("Label names")),
			),
			Handler: toolkit.Handle(v.handleCreateProject),
		},
		{
			Tool: mcp.NewTool("motion_list_users",
				mcp.WithDescription("Users of a workspace, or the owner of the API key when no workspace is given."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("workspace_id", mcp.Description("Workspace ID")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListUsers),
		},
		{
			Tool: mcp.NewTool("motion_list_tasks",
				mcp.WithDescription("List tasks, filtered by workspace, project, assignee, status, label or name."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("workspace_id", mcp.Description("Workspace ID")),
				mcp.WithString("project_id", mcp.Description("Project ID")),
				mcp.WithString("assignee_id", mcp.Description("Assignee user ID")),
				mcp.WithArray("status", mcp.WithStringItems(), mcp.Description("Status names")),
				mcp.WithString("label", mcp.Description("Label name")),
				mcp.WithString("name", mcp.Description("Case insensitive name search")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListTasks),
		},
		{
			Tool: mcp.NewTool("motion_get_task",
				mcp.WithDescription("Retrieve one task."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: toolkit.Handle(v.handleGetTask),
		},
		{
			Tool: mcp.NewTool("motion_create_task", withTaskOptions(
				mcp.WithDescription("Create a task."),
				mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace ID")),
				mcp.WithString("name", mcp.Required(), mcp.Description("Task name")),
			)...),
			Handler: toolkit.Handle(v.handleCreateTask),
		},
		{
			Tool: mcp.NewTool("motion_update_task", withTaskOptions(
				mcp.WithDescription("Update fields of a task. Set auto_schedule false to unschedule it."),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
				mcp.WithString("name", mcp.Description("New name")),
			)...),
			Handler: toolkit.Handle(v.handleUpdateTask),
		},
		{
			Tool: mcp.NewTool("motion_delete_task",
				mcp.WithDescription("Delete a task."),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
			),
			Handler: toolkit.Handle(v.handleDeleteTask),
		},
		{
			Tool: mcp.NewTool("motion_list_comments",
				mcp.WithDescription("Comments on a task."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListComments),
		},
		{
			Tool: mcp.NewTool("motion_add_comment",
				mcp.WithDescription("Comment on a task."),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
				mcp.WithString("content", mcp.Required(), mcp.Description("Comment text, markdown allowed")),
			),
			Handler: toolkit.Handle(v.handleAddComment),
		},
	}
}

// page is the list envelope Motion wraps results in.
type page map[string]any

func (p page) cursor() string { return shape.String(shape.Path(map[string]any(p), "meta.nextCursor")) }

func cursorQuery(req mcp.CallToolRequest, q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if c := toolkit.OptionalString(req, "cursor"); c != "" {
		q.Set("cursor", c)
	}
	return q
}

var workspaceFields = map[string]string{
	"id":       "id",
	"name":     "name",
	"type":     "type",
	"team_id":  "teamId",
	"statuses": "statuses[*].name",
	"labels":   "labels[*].name",
}

var projectFields = map[string]string{
	"id":           "id",
	"name":         "name",
	"description":  "description",
	"status":       "status.name",
	"workspace_id": "workspaceId",
	"created_time": "createdTime",
}

var userFields = map[string]string{
	"id":    "id",
	"name":  "name",
	"email": "email",
}

func (v *Vendor) handleListWorkspaces(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var resp page
	if err := v.api.Get(ctx, "/workspaces", cursorQuery(req, nil), &resp); err != nil {
		return nil, err
	}
	ws := shape.PickEach(resp["workspaces"], workspaceFields)
	return map[string]any{"workspaces": ws, "count": len(ws), "next_cursor": resp.cursor()}, nil
}

func (v *Vendor) handleListProjects(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	ws, err := toolkit.RequireString(req, "workspace_id")
	if err != nil {
		return nil, err
	}
	var resp page
	if err := v.api.Get(ctx, "/projects", cursorQuery(req, url.Values{"workspaceId": {ws}}), &resp); err != nil {
		return nil, err
	}
	projects := shape.PickEach(resp["projects"], projectFields)
	return map[string]any{"projects": projects, "count": len(projects), "next_cursor": resp.cursor()}, nil
}

func (v *Vendor) handleCreateProject(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	ws, err := toolkit.RequireString(req, "workspace_id")
	if err != nil {
		return nil, err
	}
	name, err := toolkit.RequireString(req, "name")
	if err != nil {
		return nil, err
	}
	body := map[string]any{"workspaceId": ws, "name": name}
	if d := toolkit.OptionalString(req, "description"); d != "" {
		body["description"] = d
	}
	if p := toolkit.OptionalString(req, "priority"); p != "" {
		if body["priority"], err = priority(p); err != nil {
			return nil, err
		}
	}
	if d := toolkit.OptionalString(req, "due_date"); d != "" {
		if body["dueDate"], err = date(d); err != nil {
			return nil, err
		}
	}
	if ls := labels(toolkit.StringList(req, "labels")); len(ls) > 0 {
		body["labels"] = ls
	}
	var created any
	if err := v.api.Post(ctx, "/projects", body, &created); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "project": shape.Pick(created, projectFields)}, nil
}

func (v *Vendor) handleListUsers(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	ws := toolkit.OptionalString(req, "workspace_id")
	if ws == "" {
		var me any
		if err := v.api.Get(ctx, "/users/me", nil, &me); err != nil {
			return nil, err
		}
		return map[string]any{"users": []map[string]any{shape.Pick(me, userFields)}, "count": 1}, nil
	}
	var resp page
	if err := v.api.Get(ctx, "/users", cursorQuery(req, url.Values{"workspaceId": {ws}}), &resp); err != nil {
		return nil, err
	}
	users := shape.PickEach(resp["users"], userFields)
	return map[string]any{"users": users, "count": len(users), "next_cursor": resp.cursor()}, nil
}

func (v *Vendor) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	q := url.Values{}
	for arg, param := range map[string]string{
		"workspace_id": "workspaceId",
		"project_id":   "projectId",
		"assignee_id":  "assigneeId",
		"label":        "label",
		"name":         "name",
	} {
		if s := toolkit.OptionalString(req, arg); s != "" {
			q.Set(param, s)
		}
	}
	for _, s := range toolkit.StringList(req, "status") {
		q.Add("status", s)
	}
	var resp page
	if err := v.api.Get(ctx, "/tasks", cursorQuery(req, q), &resp); err != nil {
		return nil, err
	}
	tasks := tasksOut(resp["tasks"])
	return map[string]any{"tasks": tasks, "count": len(tasks), "next_cursor": resp.cursor()}, nil
}

func (v *Vendor) getTask(ctx context.Context, id string) (any, error) {
	var task any
	err := v.api.Get(ctx, "/tasks/"+url.PathEscape(id), nil, &task)
	return task, toolkit.Lookup("task "+id, err)
}

func (v *Vendor) handleGetTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	task, err := v.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return taskOut(task), nil
}

// taskBody turns the writable task arguments into Motion's request body.
// Only arguments present in req are included.
func taskBody(req mcp.CallToolRequest) (map[string]any, error) {
	body := map[string]any{}
	var err error
	for arg, field := range map[string]string{
		"name":         "name",
		"description":  "description",
		"workspace_id": "workspaceId",
		"project_id":   "projectId",
		"assignee_id":  "assigneeId",
		"status":       "status",
	} {
		if s := toolkit.OptionalString(req, arg); s != "" {
			body[field] = s
		}
	}
	if p := toolkit.OptionalString(req, "priority"); p != "" {
		if body["priority"], err = priority(p); err != nil {
			return nil, err
		}
	}
	if raw, ok := req.GetArguments()["duration"]; ok && raw != nil {
		if body["duration"], err = duration(raw); err != nil {
			return nil, err
		}
	}
	if d := toolkit.OptionalString(req, "due_date"); d != "" {
		if body["dueDate"], err = date(d); err != nil {
			return nil, err
		}
	}
	if _, ok := req.GetArguments()["labels"]; ok {
		body["labels"] = labels(toolkit.StringList(req, "labels"))
	}

	auto, set := toolkit.OptionalBool(req, "auto_schedule")
	switch {
	case set && !auto:
		body["autoScheduled"] = nil
	case set && auto:
		deadline := strings.ToUpper(toolkit.OptionalString(req, "deadline_type"))
		if deadline == "" {
			deadline = "SOFT"
		}
		if deadline != "NONE" && body["dueDate"] == nil {
			return nil, toolkit.Invalid("auto_schedule with a %s deadline needs due_date", deadline)
		}
		if body["duration"] == "REMINDER" {
			return nil, toolkit.Invalid("reminders cannot be auto scheduled")
		}
		schedule := toolkit.OptionalString(req, "schedule")
		if schedule == "" {
			schedule = defaultSchedule
		}
		sched := map[string]any{"deadlineType": deadline, "schedule": schedule}
		if s := toolkit.OptionalString(req, "start_date"); s != "" {
			start, err := calendarDay(s)
			if err != nil {
				return nil, err
			}
			sched["startDate"] = start
		}
		body["autoScheduled"] = sched
	}
	return body, nil
}

func (v *Vendor) handleCreateTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	if _, err := toolkit.RequireString(req, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := toolkit.RequireString(req, "name"); err != nil {
		return nil, err
	}
	body, err := taskBody(req)
	if err != nil {
		return nil, err
	}
	var created any
	if err := v.api.Post(ctx, "/tasks", body, &created); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "task": taskOut(created)}, nil
}

func (v *Vendor) handleUpdateTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	body, err := taskBody(req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, toolkit.Invalid("nothing to update")
	}
	var updated any
	err = v.api.Patch(ctx, "/tasks/"+url.PathEscape(id), body, &updated)
	if err = toolkit.Lookup("task "+id, err); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "task": taskOut(updated)}, nil
}

func (v *Vendor) handleDeleteTask(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	err = v.api.Delete(ctx, "/tasks/"+url.PathEscape(id), nil)
	if err = toolkit.Lookup("task "+id, err); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "deleted": id}, nil
}

var commentFields = map[string]string{
	"id":      "id",
	"content": "content",
	"author":  "creator.name",
	"created": "createdAt",
}

func (v *Vendor) handleListComments(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	var resp page
	err = v.api.Get(ctx, "/comments", cursorQuery(req, url.Values{"taskId": {id}}), &resp)
	if err = toolkit.Lookup("task "+id, err); err != nil {
		return nil, err
	}
	comments := shape.PickEach(resp["comments"], commentFields)
	return map[string]any{"comments": comments, "count": len(comments), "next_cursor": resp.cursor()}, nil
}

func (v *Vendor) handleAddComment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "task_id")
	if err != nil {
		return nil, err
	}
	content, err := toolkit.RequireString(req, "content")
	if err != nil {
		return nil, err
	}
	var created any
	err = v.api.Post(ctx, "/comments", map[string]any{"taskId": id, "content": content}, &created)
	if err = toolkit.Lookup("task "+id, err); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "comment": shape.Pick(created, commentFields)}, nil
}
