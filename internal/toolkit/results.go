package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/upstream"
)

// ErrInvalidArgument marks a tool call whose arguments failed validation.
var ErrInvalidArgument = errors.New("invalid argument")

// NotFoundError reports a resource the vendor does not know.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// NotFound returns a NotFoundError for resource.
func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// Lookup converts an upstream 404 into a NotFoundError for resource and
// passes every other error through.
func Lookup(resource string, err error) error {
	if err != nil && upstream.IsNotFound(err) {
		return NotFound(resource)
	}
	return err
}

// Invalid wraps ErrInvalidArgument with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
}

// JSONResult renders v as indented JSON text.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("json marshal: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}

// Failure renders err as {"success": false, "error": ..., "status": N}.
// Not-found errors are ordinary results rather than tool errors.
func Failure(err error) *mcp.CallToolResult {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return JSONResult(failure{Error: nf.Error()})
	}
	if upstream.IsNotFound(err) {
		return JSONResult(failure{Error: "resource not found"})
	}

	f := failure{Error: err.Error(), Status: upstream.StatusCode(err)}
	var ue *upstream.Error
	if errors.As(err, &ue) {
		f.Error = ue.Message
		if f.Error == "" {
			f.Error = ue.Error()
		}
	}
	b, _ := json.MarshalIndent(f, "", "  ")
	return mcp.NewToolResultError(string(b))
}

// HandlerFunc is a tool body returning a value to render as JSON.
type HandlerFunc func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// Handle adapts fn into an MCP tool handler. Errors never escape as
// protocol errors: they are rendered with Failure.
func Handle(fn HandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v, err := fn(ctx, req)
		if err != nil {
			return Failure(err), nil
		}
		if r, ok := v.(*mcp.CallToolResult); ok {
			return r, nil
		}
		return JSONResult(v), nil
	}
}
