package slack

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	slackapi "github.com/slack-go/slack"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("slack_list_channels",
				mcp.WithDescription("List channels the token can see."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("types", mcp.Description("Comma separated conversation types (default public_channel)")),
				mcp.WithBoolean("exclude_archived", mcp.Description("Skip archived channels (default true)")),
				mcp.WithNumber("limit", mcp.Description("Max channels (default 100, max 1000)")),
				mcp.WithString("cursor", mcp.Description("Pagination cursor from a previous call")),
			),
			Handler: toolkit.Handle(v.handleListChannels),
		},
		{
			Tool: mcp.NewTool("slack_post_message",
				mcp.WithDescription("Post a message to a channel."),
				mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel ID (C...)")),
				mcp.WithString("text", mcp.Required(), mcp.Description("Message text (mrkdwn)")),
			),
			Handler: toolkit.Handle(v.handlePostMessage),
		},
		{
			Tool: mcp.NewTool("slack_reply_to_thread",
				mcp.WithDescription("Reply in a message thread."),
				mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel ID")),
				mcp.WithString("thread_ts", mcp.Required(), mcp.Description("Timestamp of the parent message")),
				mcp.WithString("text", mcp.Required(), mcp.Description("Reply text")),
				mcp.WithBoolean("broadcast", mcp.Description("Also send to the channel")),
			),
			Handler: toolkit.Handle(v.handleReply),
		},
		{
			Tool: mcp.NewTool("slack_add_reaction",
				mcp.WithDescription("Add an emoji reaction to a message."),
				mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel ID")),
				mcp.WithString("timestamp", mcp.Required(), mcp.Description("Message timestamp")),
				mcp.WithString("reaction", mcp.Required(), mcp.Description("Emoji name without colons")),
			),
			Handler: toolkit.Handle(v.handleAddReaction),
		},
		{
			Tool: mcp.NewTool("slack_get_channel_history",
				mcp.WithDescription("Recent messages of a channel, newest first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel ID")),
				mcp.WithNumber("limit", mcp.Description("Max messages (default 20, max 200)")),
				mcp.WithString("oldest", mcp.Description("Only messages after this timestamp")),
				mcp.WithString("cursor", mcp.Description("Pagination cursor")),
			),
			Handler: toolkit.Handle(v.handleHistory),
		},
		{
			Tool: mcp.NewTool("slack_get_thread_replies",
				mcp.WithDescription("All messages of a thread, parent first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel ID")),
				mcp.WithString("thread_ts", mcp.Required(), mcp.Description("Timestamp of the parent message")),
				mcp.WithNumber("limit", mcp.Description("Max messages (default 50, max 200)")),
			),
			Handler: toolkit.Handle(v.handleReplies),
		},
		{
			Tool: mcp.NewTool("slack_list_users",
				mcp.WithDescription("List workspace members."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithNumber("limit", mcp.Description("Max users (default 100, max 1000)")),
				mcp.WithBoolean("include_bots", mcp.Description("Include bot users (default false)")),
			),
			Handler: toolkit.Handle(v.handleListUsers),
		},
		{
			Tool: mcp.NewTool("slack_get_user_profile",
				mcp.WithDescription("Profile of one user."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("user_id", mcp.Required(), mcp.Description("User ID (U...)")),
			),
			Handler: toolkit.Handle(v.handleUserProfile),
		},
		{
			Tool: mcp.NewTool("slack_search_messages",
				mcp.WithDescription("Search messages. Requires a user token with search:read."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Slack search query, modifiers like in:#general allowed")),
				mcp.WithString("sort", mcp.Enum("score", "timestamp")),
				mcp.WithNumber("count", mcp.Description("Max matches (default 20, max 100)")),
			),
			Handler: toolkit.Handle(v.handleSearch),
		},
	}
}

func channelOut(ch slackapi.Channel) map[string]any {
	return map[string]any{
		"id":          ch.ID,
		"name":        ch.Name,
		"is_private":  ch.IsPrivate,
		"is_archived": ch.IsArchived,
		"is_member":   ch.IsMember,
		"num_members": ch.NumMembers,
		"topic":       ch.Topic.Value,
		"purpose":     ch.Purpose.Value,
		"created":     shape.Unix(int64(ch.Created)),
	}
}

func messageOut(m slackapi.Message) map[string]any {
	out := map[string]any{
		"ts":          m.Timestamp,
		"time":        shape.Unix(m.Timestamp),
		"user":        m.User,
		"text":        m.Text,
		"thread_ts":   m.ThreadTimestamp,
		"reply_count": m.ReplyCount,
	}
	if m.BotID != "" {
		out["bot_id"] = m.BotID
		out["username"] = m.Username
	}
	if len(m.Reactions) > 0 {
		reactions := make([]map[string]any, 0, len(m.Reactions))
		for _, r := range m.Reactions {
			reactions = append(reactions, map[string]any{"name": r.Name, "count": r.Count})
		}
		out["reactions"] = reactions
	}
	return out
}

func messagesOut(msgs []slackapi.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageOut(m))
	}
	return out
}

func userOut(u slackapi.User) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"name":         u.Name,
		"real_name":    u.RealName,
		"display_name": u.Profile.DisplayName,
		"email":        u.Profile.Email,
		"title":        u.Profile.Title,
		"tz":           u.TZ,
		"is_bot":       u.IsBot,
		"is_admin":     u.IsAdmin,
		"deleted":      u.Deleted,
	}
}

func (v *Vendor) handleListChannels(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "limit", 100, 1, 1000)
	if err != nil {
		return nil, err
	}
	types := toolkit.StringList(req, "types")
	if len(types) == 0 {
		types = []string{"public_channel"}
	}
	params := &slackapi.GetConversationsParameters{
		Types:           types,
		Limit:           limit,
		Cursor:          toolkit.OptionalString(req, "cursor"),
		ExcludeArchived: toolkit.BoolArg(req, "exclude_archived", true),
	}

	var (
		channels []slackapi.Channel
		next     string
	)
	err = v.call(ctx, "conversations.list", func(c *slackapi.Client) error {
		var err error
		channels, next, err = c.GetConversationsContext(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelOut(ch))
	}
	return map[string]any{"channels": out, "count": len(out), "next_cursor": next}, nil
}

func (v *Vendor) post(ctx context.Context, channel string, opts ...slackapi.MsgOption) (map[string]any, error) {
	var ch, ts string
	err := v.call(ctx, "chat.postMessage", func(c *slackapi.Client) error {
		var err error
		ch, ts, err = c.PostMessageContext(ctx, channel, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "channel": ch, "ts": ts}, nil
}

func (v *Vendor) handlePostMessage(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	channel, err := toolkit.RequireString(req, "channel_id")
	if err != nil {
		return nil, err
	}
	text, err := toolkit.RequireString(req, "text")
	if err != nil {
		return nil, err
	}
	return v.post(ctx, channel, slackapi.MsgOptionText(text, false))
}

func (v *Vendor) handleReply(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	channel, err := toolkit.RequireString(req, "channel_id")
	if err != nil {
		return nil, err
	}
	thread, err := toolkit.RequireString(req, "thread_ts")
	if err != nil {
		return nil, err
	}
	text, err := toolkit.RequireString(req, "text")
	if err != nil {
		return nil, err
	}
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(text, false), slackapi.MsgOptionTS(thread)}
	if toolkit.BoolArg(req, "broadcast", false) {
		opts = append(opts, slackapi.MsgOptionBroadcast())
	}
	return v.post(ctx, channel, opts...)
}

func (v *Vendor) handleAddReaction(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	channel, err := toolkit.RequireString(req, "channel_id")
	if err != nil {
		return nil, err
	}
	ts, err := toolkit.RequireString(req, "timestamp")
	if err != nil {
		return nil, err
	}
	reaction, err := toolkit.RequireString(req, "reaction")
	if err != nil {
		return nil, err
	}
	reaction = strings.Trim(reaction, ":")
	err = v.call(ctx, "reactions.add", func(c *slackapi.Client) error {
		return c.AddReactionContext(ctx, reaction, slackapi.NewRefToMessage(channel, ts))
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "reaction": reaction}, nil
}

func (v *Vendor) handleHistory(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	channel, err := toolkit.RequireString(req, "channel_id")
	if err != nil {
		return nil, err
	}
	limit, err := toolkit.IntArg(req, "limit", 20, 1, 200)
	if err != nil {
		return nil, err
	}
	params := &slackapi.GetConversationHistoryParameters{
		ChannelID: channel,
		Limit:     limit,
		Oldest:    toolkit.OptionalString(req, "oldest"),
		Cursor:    toolkit.OptionalString(req, "cursor"),
	}
	var resp *slackapi.GetConversationHistoryResponse
	err = v.call(ctx, "conversations.history", func(c *slackapi.Client) error {
		var err error
		resp, err = c.GetConversationHistoryContext(ctx, params)
		return err
	})
	if err != nil {
		return nil, toolkit.Lookup("channel "+channel, err)
	}
	msgs := messagesOut(resp.Messages)
	return map[string]any{
		"messages":    msgs,
		"count":       len(msgs),
		"has_more":    resp.HasMore,
		"next_cursor": resp.ResponseMetaData.NextCursor,
	}, nil
}

func (v *Vendor) handleReplies(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	channel, err := toolkit.RequireString(req, "channel_id")
	if err != nil {
		return nil, err
	}
	thread, err := toolkit.RequireString(req, "thread_ts")
	if err != nil {
		return nil, err
	}
	limit, err := toolkit.IntArg(req, "limit", 50, 1, 200)
	if err != nil {
		return nil, err
	}
	var (
		msgs    []slackapi.Message
		hasMore bool
	)
	err = v.call(ctx, "conversations.replies", func(c *slackapi.Client) error {
		var err error
		msgs, hasMore, _, err = c.GetConversationRepliesContext(ctx, &slackapi.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: thread,
			Limit:     limit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	out := messagesOut(msgs)
	return map[string]any{"messages": out, "count": len(out), "has_more": hasMore}, nil
}

func (v *Vendor) handleListUsers(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "limit", 100, 1, 1000)
	if err != nil {
		return nil, err
	}
	bots := toolkit.BoolArg(req, "include_bots", false)

	var users []slackapi.User
	err = v.call(ctx, "users.list", func(c *slackapi.Client) error {
		var err error
		users, err = c.GetUsersContext(ctx, slackapi.GetUsersOptionLimit(limit))
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		if len(out) == limit {
			break
		}
		if u.Deleted || (u.IsBot && !bots) || u.ID == "USLACKBOT" {
			continue
		}
		out = append(out, userOut(u))
	}
	return map[string]any{"users": out, "count": len(out)}, nil
}

func (v *Vendor) handleUserProfile(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "user_id")
	if err != nil {
		return nil, err
	}
	var u *slackapi.User
	err = v.call(ctx, "users.info", func(c *slackapi.Client) error {
		var err error
		u, err = c.GetUserInfoContext(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := userOut(*u)
	out["phone"] = u.Profile.Phone
	out["status_text"] = u.Profile.StatusText
	out["image"] = u.Profile.Image192
	return out, nil
}

func (v *Vendor) handleSearch(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	query, err := toolkit.RequireString(req, "query")
	if err != nil {
		return nil, err
	}
	count, err := toolkit.IntArg(req, "count", 20, 1, 100)
	if err != nil {
		return nil, err
	}
	params := slackapi.NewSearchParameters()
	params.Count = count
	if sort := toolkit.OptionalString(req, "sort"); sort != "" {
		params.Sort = sort
	}

	var res *slackapi.SearchMessages
	err = v.call(ctx, "search.messages", func(c *slackapi.Client) error {
		var err error
		res, err = c.SearchMessagesContext(ctx, query, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	matches := make([]map[string]any, 0, len(res.Matches))
	for _, m := range res.Matches {
		matches = append(matches, map[string]any{
			"channel_id":   m.Channel.ID,
			"channel_name": m.Channel.Name,
			"user":         m.User,
			"username":     m.Username,
			"ts":           m.Timestamp,
			"time":         shape.Unix(m.Timestamp),
			"text":         m.Text,
			"permalink":    m.Permalink,
		})
	}
	return map[string]any{"matches": matches, "count": len(matches), "total": res.Total}, nil
}
