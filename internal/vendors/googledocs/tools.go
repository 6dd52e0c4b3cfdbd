package googledocs

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"mcp-fleet/internal/toolkit"
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("googledocs_get_document",
				mcp.WithDescription("A document's content as markdown."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID from its URL")),
			),
			Handler: toolkit.Handle(v.handleGetDocument),
		},
		{
			Tool: mcp.NewTool("googledocs_create_document",
				mcp.WithDescription("Create a document, optionally filled from markdown."),
				mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
				mcp.WithString("markdown", mcp.Description("Initial content: headings, lists, bold, italic, code and links")),
			),
			Handler: toolkit.Handle(v.handleCreateDocument),
		},
		{
			Tool: mcp.NewTool("googledocs_append_markdown",
				mcp.WithDescription("Append markdown to the end of a document."),
				mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
				mcp.WithString("markdown", mcp.Required(), mcp.Description("Content to append")),
			),
			Handler: toolkit.Handle(v.handleAppendMarkdown),
		},
		{
			Tool: mcp.NewTool("googledocs_replace_text",
				mcp.WithDescription("Replace every occurrence of a text in a document."),
				mcp.WithString("document_id", mcp.Required(), mcp.Description("Document ID")),
				mcp.WithString("find", mcp.Required(), mcp.Description("Text to find")),
				mcp.WithString("replace", mcp.Description("Replacement (empty deletes)")),
				mcp.WithBoolean("match_case", mcp.Description("Case sensitive match (default true)")),
			),
			Handler: toolkit.Handle(v.handleReplaceText),
		},
		{
			Tool: mcp.NewTool("googledocs_list_documents",
				mcp.WithDescription("Documents visible to the user, most recently modified first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Description("Only documents whose name contains this")),
				mcp.WithNumber("max_results", mcp.Description("Max documents (default 20, max 100)")),
				mcp.WithString("page_token", mcp.Description("Token from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListDocuments),
		},
	}
}

func (v *Vendor) getDocument(ctx context.Context, svc *docs.Service, id string) (*docs.Document, error) {
	var d *docs.Document
	err := v.auth.Do(ctx, "document "+id, func() (err error) {
		d, err = svc.Documents.Get(id).Context(ctx).Do()
		return err
	})
	return d, err
}

func (v *Vendor) batchUpdate(ctx context.Context, svc *docs.Service, id string, reqs []*docs.Request) (*docs.BatchUpdateDocumentResponse, error) {
	var res *docs.BatchUpdateDocumentResponse
	err := v.auth.Do(ctx, "document "+id, func() (err error) {
		res, err = svc.Documents.BatchUpdate(id, &docs.BatchUpdateDocumentRequest{Requests: reqs}).Context(ctx).Do()
		return err
	})
	return res, err
}

func (v *Vendor) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "document_id")
	if err != nil {
		return nil, err
	}
	svc, err := v.docs(ctx)
	if err != nil {
		return nil, err
	}
	d, err := v.getDocument(ctx, svc, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"document_id": d.DocumentId,
		"title":       d.Title,
		"revision_id": d.RevisionId,
		"url":         documentURL(d.DocumentId),
		"markdown":    documentMarkdown(d),
	}, nil
}

func (v *Vendor) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	title, err := toolkit.RequireString(req, "title")
	if err != nil {
		return nil, err
	}
	svc, err := v.docs(ctx)
	if err != nil {
		return nil, err
	}
	var d *docs.Document
	err = v.auth.Do(ctx, "document", func() (err error) {
		d, err = svc.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := map[string]any{"document_id": d.DocumentId, "title": d.Title, "url": documentURL(d.DocumentId)}
	if reqs := markdownRequests(toolkit.OptionalString(req, "markdown"), 1); len(reqs) > 0 {
		if _, err := v.batchUpdate(ctx, svc, d.DocumentId, reqs); err != nil {
			return nil, err
		}
		out["requests_applied"] = len(reqs)
	}
	return out, nil
}

func (v *Vendor) handleAppendMarkdown(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "document_id")
	if err != nil {
		return nil, err
	}
	md, err := toolkit.RequireString(req, "markdown")
	if err != nil {
		return nil, err
	}
	svc, err := v.docs(ctx)
	if err != nil {
		return nil, err
	}
	d, err := v.getDocument(ctx, svc, id)
	if err != nil {
		return nil, err
	}
	at := endIndex(d)
	reqs := appendRequests(md, at, !lastParagraphEmpty(d))
	if len(reqs) == 0 {
		return nil, toolkit.Invalid("markdown has no content")
	}
	if _, err := v.batchUpdate(ctx, svc, id, reqs); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "document_id": id, "inserted_at": at, "requests_applied": len(reqs)}, nil
}

func (v *Vendor) handleReplaceText(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "document_id")
	if err != nil {
		return nil, err
	}
	find, err := toolkit.RequireString(req, "find")
	if err != nil {
		return nil, err
	}
	svc, err := v.docs(ctx)
	if err != nil {
		return nil, err
	}
	res, err := v.batchUpdate(ctx, svc, id, []*docs.Request{{
		ReplaceAllText: &docs.ReplaceAllTextRequest{
			ContainsText:    &docs.SubstringMatchCriteria{Text: find, MatchCase: toolkit.BoolArg(req, "match_case", true)},
			ReplaceText:     toolkit.OptionalString(req, "replace"),
			ForceSendFields: []string{"ReplaceText"},
		},
	}})
	if err != nil {
		return nil, err
	}
	var changed int64
	if len(res.Replies) > 0 && res.Replies[0].ReplaceAllText != nil {
		changed = res.Replies[0].ReplaceAllText.OccurrencesChanged
	}
	return map[string]any{"success": true, "document_id": id, "occurrences_changed": changed}, nil
}

// driveQuery builds a Drive search for documents whose name contains name.
func driveQuery(name string) string {
	q := "mimeType='" + documentMime + "' and trashed=false"
	if name = strings.TrimSpace(name); name != "" {
		escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
		q += " and name contains '" + escaped + "'"
	}
	return q
}

func (v *Vendor) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "max_results", 20, 1, 100)
	if err != nil {
		return nil, err
	}
	svc, err := v.drive(ctx)
	if err != nil {
		return nil, err
	}
	call := svc.Files.List().
		Q(driveQuery(toolkit.OptionalString(req, "query"))).
		OrderBy("modifiedTime desc").
		PageSize(int64(limit)).
		Fields(googleapi.Field("nextPageToken, files(id, name, modifiedTime, webViewLink, owners(displayName))")).
		Context(ctx)
	if tok := toolkit.OptionalString(req, "page_token"); tok != "" {
		call = call.PageToken(tok)
	}
	var res *drive.FileList
	err = v.auth.Do(ctx, "documents", func() (err error) {
		res, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	files := make([]map[string]any, 0, len(res.Files))
	for _, f := range res.Files {
		owners := make([]string, 0, len(f.Owners))
		for _, o := range f.Owners {
			owners = append(owners, o.DisplayName)
		}
		files = append(files, map[string]any{
			"document_id": f.Id,
			"title":       f.Name,
			"modified":    f.ModifiedTime,
			"url":         f.WebViewLink,
			"owners":      owners,
		})
	}
	return map[string]any{"documents": files, "count": len(files), "next_page_token": res.NextPageToken}, nil
}
