package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const bodyPreview = 500

func (v *Vendor) tools() []server.ServerTool {
	timeRange := mcp.Enum("hour", "day", "week", "month", "year", "all")
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("reddit_search_subreddits",
				mcp.WithDescription("Find subreddits by name or topic."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 100)")),
			),
			Handler: toolkit.Handle(v.handleSearchSubreddits),
		},
		{
			Tool: mcp.NewTool("reddit_search_posts",
				mcp.WithDescription("Search posts, optionally in one subreddit, re-ranked by how well title and body match the query."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
				mcp.WithString("subreddit", mcp.Description("Subreddit name without r/")),
				mcp.WithString("sort", mcp.Enum("relevance", "hot", "top", "new", "comments")),
				mcp.WithString("time", timeRange),
				mcp.WithNumber("limit", mcp.Description("Max results (default 25, max 100)")),
			),
			Handler: toolkit.Handle(v.handleSearchPosts),
		},
		{
			Tool: mcp.NewTool("reddit_get_post_details",
				mcp.WithDescription("A post with its top comments and their replies."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("post_id", mcp.Required(), mcp.Description("Post ID, with or without the t3_ prefix")),
				mcp.WithNumber("comment_limit", mcp.Description("Top level comments (default 20, max 100)")),
				mcp.WithNumber("depth", mcp.Description("Reply depth (default 3, max 8)")),
			),
			Handler: toolkit.Handle(v.handlePostDetails),
		},
		{
			Tool: mcp.NewTool("reddit_get_top_posts",
				mcp.WithDescription("Top posts of a subreddit."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("subreddit", mcp.Required(), mcp.Description("Subreddit name without r/")),
				mcp.WithString("time", timeRange),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 100)")),
			),
			Handler: toolkit.Handle(v.handleTopPosts),
		},
		{
			Tool: mcp.NewTool("reddit_create_post",
				mcp.WithDescription("Submit a text or link post. Requires a user access token."),
				mcp.WithString("subreddit", mcp.Required(), mcp.Description("Subreddit name without r/")),
				mcp.WithString("title", mcp.Required(), mcp.Description("Post title (max 300 characters)")),
				mcp.WithString("text", mcp.Description("Body for a text post")),
				mcp.WithString("url", mcp.Description("Target for a link post")),
				mcp.WithString("flair_id", mcp.Description("Flair template ID")),
			),
			Handler: toolkit.Handle(v.handleCreatePost),
		},
		{
			Tool: mcp.NewTool("reddit_add_comment",
				mcp.WithDescription("Comment on a post or reply to a comment. Requires a user access token."),
				mcp.WithString("parent_id", mcp.Required(), mcp.Description("Fullname of the parent, t3_ for posts or t1_ for comments")),
				mcp.WithString("text", mcp.Required(), mcp.Description("Comment markdown")),
			),
			Handler: toolkit.Handle(v.handleAddComment),
		},
	}
}

func postOut(d map[string]any) map[string]any {
	return map[string]any{
		"id":           d["id"],
		"title":        d["title"],
		"subreddit":    d["subreddit"],
		"author":       d["author"],
		"score":        d["score"],
		"upvote_ratio": d["upvote_ratio"],
		"num_comments": d["num_comments"],
		"url":          d["url"],
		"permalink":    "https://www.reddit.com" + shape.String(d["permalink"]),
		"selftext":     shape.String(d["selftext"]),
		"is_self":      d["is_self"],
		"nsfw":         d["over_18"],
		"created":      shape.Unix(d["created_utc"]),
	}
}

func posts(l listing) []map[string]any {
	out := make([]map[string]any, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		if c.Kind == "t3" {
			out = append(out, postOut(c.Data))
		}
	}
	return out
}

func truncateBodies(ps []map[string]any) {
	for _, p := range ps {
		p["selftext"] = shape.Truncate(shape.String(p["selftext"]), bodyPreview)
	}
}

// subreddit validates a subreddit name.
func subreddit(req mcp.CallToolRequest, required bool) (string, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(toolkit.OptionalString(req, "subreddit"), "/"), "r/")
	if s == "" {
		if required {
			return "", toolkit.Invalid("subreddit is required")
		}
		return "", nil
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", toolkit.Invalid("invalid subreddit name %q", s)
		}
	}
	return s, nil
}

func (v *Vendor) handleSearchSubreddits(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	q, err := toolkit.RequireString(req, "query")
	if err != nil {
		return nil, err
	}
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	var l listing
	err = v.api.GetCached(ctx, "/subreddits/search", url.Values{
		"q": {q}, "limit": {strconv.Itoa(limit)}, "raw_json": {"1"},
	}, &l)
	if err != nil {
		return nil, err
	}
	subs := make([]map[string]any, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		subs = append(subs, map[string]any{
			"name":        c.Data["display_name"],
			"title":       c.Data["title"],
			"description": shape.Truncate(shape.String(c.Data["public_description"]), 300),
			"subscribers": c.Data["subscribers"],
			"nsfw":        c.Data["over18"],
			"url":         "https://www.reddit.com" + shape.String(c.Data["url"]),
		})
	}
	return map[string]any{"subreddits": subs, "count": len(subs)}, nil
}

func (v *Vendor) handleSearchPosts(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	q, err := toolkit.RequireString(req, "query")
	if err != nil {
		return nil, err
	}
	sub, err := subreddit(req, false)
	if err != nil {
		return nil, err
	}
	limit, err := toolkit.IntArg(req, "limit", 25, 1, 100)
	if err != nil {
		return nil, err
	}
	params := url.Values{"q": {q}, "limit": {strconv.Itoa(limit)}, "raw_json": {"1"}, "type": {"link"}}
	if s := toolkit.OptionalString(req, "sort"); s != "" {
		params.Set("sort", s)
	}
	if t := toolkit.OptionalString(req, "time"); t != "" {
		params.Set("t", t)
	}
	path := "/search"
	if sub != "" {
		path = "/r/" + sub + "/search"
		params.Set("restrict_sr", "1")
	}

	var l listing
	if err := toolkit.Lookup("subreddit "+sub, v.api.GetCached(ctx, path, params, &l)); err != nil {
		return nil, err
	}
	ps := posts(l)
	rank(q, ps)
	truncateBodies(ps)
	return map[string]any{"posts": ps, "count": len(ps), "after": l.Data.After}, nil
}

func asListing(v any) (listing, bool) {
	var l listing
	m, ok := v.(map[string]any)
	if !ok {
		return l, false
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return l, false
	}
	return l, json.Unmarshal(raw, &l) == nil
}

// commentTree reshapes a comment listing down to depth levels.
func commentTree(children []thing, depth int) []map[string]any {
	out := make([]map[string]any, 0, len(children))
	for _, c := range children {
		if c.Kind != "t1" {
			continue
		}
		cm := map[string]any{
			"id":      c.Data["id"],
			"author":  c.Data["author"],
			"body":    c.Data["body"],
			"score":   c.Data["score"],
			"created": shape.Unix(c.Data["created_utc"]),
		}
		// Leaf comments carry replies as "" rather than a listing.
		if l, ok := asListing(c.Data["replies"]); ok && depth > 1 {
			if r := commentTree(l.Data.Children, depth-1); len(r) > 0 {
				cm["replies"] = r
			}
		}
		out = append(out, cm)
	}
	return out
}

func (v *Vendor) handlePostDetails(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "post_id")
	if err != nil {
		return nil, err
	}
	id = strings.TrimPrefix(id, "t3_")
	limit, err := toolkit.IntArg(req, "comment_limit", 20, 1, 100)
	if err != nil {
		return nil, err
	}
	depth, err := toolkit.IntArg(req, "depth", 3, 1, 8)
	if err != nil {
		return nil, err
	}
	var pair []listing
	err = v.api.GetCached(ctx, "/comments/"+url.PathEscape(id), url.Values{
		"limit": {strconv.Itoa(limit)}, "depth": {strconv.Itoa(depth)}, "sort": {"top"}, "raw_json": {"1"},
	}, &pair)
	if err := toolkit.Lookup("post "+id, err); err != nil {
		return nil, err
	}
	if len(pair) == 0 || len(posts(pair[0])) == 0 {
		return nil, toolkit.NotFound("post " + id)
	}
	post := posts(pair[0])[0]
	comments := []map[string]any{}
	if len(pair) > 1 {
		comments = commentTree(pair[1].Data.Children, depth)
	}
	return map[string]any{"post": post, "comments": comments, "comment_count": len(comments)}, nil
}

func (v *Vendor) handleTopPosts(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	sub, err := subreddit(req, true)
	if err != nil {
		return nil, err
	}
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	t := toolkit.OptionalString(req, "time")
	if t == "" {
		t = "week"
	}
	var l listing
	err = v.api.GetCached(ctx, "/r/"+sub+"/top", url.Values{
		"t": {t}, "limit": {strconv.Itoa(limit)}, "raw_json": {"1"},
	}, &l)
	if err := toolkit.Lookup("subreddit "+sub, err); err != nil {
		return nil, err
	}
	ps := posts(l)
	truncateBodies(ps)
	return map[string]any{"subreddit": sub, "posts": ps, "count": len(ps)}, nil
}

// submitResult is the api_type=json envelope of write endpoints.
type submitResult struct {
	JSON struct {
		Errors [][]any    `json:"errors"`
		Data   submitData `json:"data"`
	} `json:"json"`
}

type submitData struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	URL    string  `json:"url"`
	Things []thing `json:"things"`
}

// err reports the first error Reddit embedded in a 200 response.
func (s submitResult) err() error {
	if len(s.JSON.Errors) == 0 {
		return nil
	}
	e := s.JSON.Errors[0]
	parts := make([]string, 0, len(e))
	for _, p := range e {
		if str := shape.String(p); str != "" {
			parts = append(parts, str)
		}
	}
	return &upstream.Error{Vendor: Name, StatusCode: http.StatusBadRequest, Message: strings.Join(parts, ": ")}
}

func (v *Vendor) submit(ctx context.Context, path string, form url.Values) (submitResult, error) {
	form.Set("api_type", "json")
	var res submitResult
	_, err := v.api.Do(ctx, upstream.Request{Method: http.MethodPost, Path: path, Form: form}, &res)
	if err != nil {
		return res, err
	}
	return res, res.err()
}

func (v *Vendor) handleCreatePost(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	sub, err := subreddit(req, true)
	if err != nil {
		return nil, err
	}
	title, err := toolkit.RequireString(req, "title")
	if err != nil {
		return nil, err
	}
	if len([]rune(title)) > 300 {
		return nil, toolkit.Invalid("title exceeds 300 characters")
	}
	text, link := toolkit.OptionalString(req, "text"), toolkit.OptionalString(req, "url")
	if text != "" && link != "" {
		return nil, toolkit.Invalid("give either text or url, not both")
	}
	form := url.Values{"sr": {sub}, "title": {title}, "kind": {"self"}}
	if link != "" {
		form.Set("kind", "link")
		form.Set("url", link)
	} else {
		form.Set("text", text)
	}
	if f := toolkit.OptionalString(req, "flair_id"); f != "" {
		form.Set("flair_id", f)
	}
	res, err := v.submit(ctx, "/api/submit", form)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "id": res.JSON.Data.ID, "name": res.JSON.Data.Name, "url": res.JSON.Data.URL}, nil
}

func (v *Vendor) handleAddComment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	parent, err := toolkit.RequireString(req, "parent_id")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(parent, "t1_") && !strings.HasPrefix(parent, "t3_") {
		return nil, toolkit.Invalid("parent_id must start with t1_ or t3_, got %q", parent)
	}
	text, err := toolkit.RequireString(req, "text")
	if err != nil {
		return nil, err
	}
	res, err := v.submit(ctx, "/api/comment", url.Values{"thing_id": {parent}, "text": {text}})
	if err != nil {
		return nil, err
	}
	if len(res.JSON.Data.Things) == 0 {
		return nil, fmt.Errorf("reddit returned no comment")
	}
	c := res.JSON.Data.Things[0].Data
	return map[string]any{
		"success":   true,
		"id":        c["id"],
		"name":      c["name"],
		"permalink": "https://www.reddit.com" + shape.String(c["permalink"]),
	}, nil
}
