package yahoofinance

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
)

const (
	maxCompare     = 10
	compareWorkers = 4
)

var (
	ranges    = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}
	intervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("yahoofinance_get_quote",
				mcp.WithDescription("Latest price, day range and change for a ticker symbol."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker, e.g. AAPL or BTC-USD")),
			),
			Handler: toolkit.Handle(v.handleQuote),
		},
		{
			Tool: mcp.NewTool("yahoofinance_get_historical_prices",
				mcp.WithDescription("OHLCV candles for a symbol over a range or between two dates."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol")),
				mcp.WithString("range", mcp.Enum(ranges...), mcp.Description("Lookback (default 1mo); ignored when start is given")),
				mcp.WithString("interval", mcp.Enum(intervals...), mcp.Description("Candle size (default 1d)")),
				mcp.WithString("start", mcp.Description("First day, YYYY-MM-DD")),
				mcp.WithString("end", mcp.Description("Last day, YYYY-MM-DD (default today)")),
			),
			Handler: toolkit.Handle(v.handleHistory),
		},
		{
			Tool: mcp.NewTool("yahoofinance_search_symbols",
				mcp.WithDescription("Find ticker symbols by company name or keyword."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Company name or keyword")),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 50)")),
			),
			Handler: toolkit.Handle(v.handleSearch),
		},
		{
			Tool: mcp.NewTool("yahoofinance_get_news",
				mcp.WithDescription("Recent news headlines for a symbol or topic."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Ticker or topic")),
				mcp.WithNumber("limit", mcp.Description("Max articles (default 10, max 50)")),
			),
			Handler: toolkit.Handle(v.handleNews),
		},
		{
			Tool: mcp.NewTool("yahoofinance_compare_quotes",
				mcp.WithDescription("Quotes for several symbols side by side, sorted by daily change."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithArray("symbols", mcp.Required(), mcp.WithStringItems(), mcp.Description("Up to 10 ticker symbols")),
			),
			Handler: toolkit.Handle(v.handleCompare),
		},
	}
}

func symbolArg(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", toolkit.Invalid("symbol is required")
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune(".-^=", r)) {
			return "", toolkit.Invalid("invalid symbol %q", s)
		}
	}
	return s, nil
}

func (v *Vendor) quote(ctx context.Context, symbol string) (map[string]any, error) {
	r, err := v.fetchChart(ctx, symbol, url.Values{"range": {"1d"}, "interval": {"1d"}})
	if err != nil {
		return nil, err
	}
	return quoteOut(r.Meta), nil
}

func (v *Vendor) handleQuote(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	raw, err := toolkit.RequireString(req, "symbol")
	if err != nil {
		return nil, err
	}
	symbol, err := symbolArg(raw)
	if err != nil {
		return nil, err
	}
	return v.quote(ctx, symbol)
}

func parseDay(s string, name string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, toolkit.Invalid("%s must be YYYY-MM-DD, got %q", name, s)
	}
	return t, nil
}

func (v *Vendor) handleHistory(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	raw, err := toolkit.RequireString(req, "symbol")
	if err != nil {
		return nil, err
	}
	symbol, err := symbolArg(raw)
	if err != nil {
		return nil, err
	}
	interval := toolkit.OptionalString(req, "interval")
	if interval == "" {
		interval = "1d"
	}
	q := url.Values{"interval": {interval}, "events": {"div,split"}}

	if start := toolkit.OptionalString(req, "start"); start != "" {
		from, err := parseDay(start, "start")
		if err != nil {
			return nil, err
		}
		to := time.Now().UTC()
		if end := toolkit.OptionalString(req, "end"); end != "" {
			if to, err = parseDay(end, "end"); err != nil {
				return nil, err
			}
			to = to.Add(24 * time.Hour)
		}
		if !to.After(from) {
			return nil, toolkit.Invalid("end must be after start")
		}
		q.Set("period1", strconv.FormatInt(from.Unix(), 10))
		q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	} else {
		rng := toolkit.OptionalString(req, "range")
		if rng == "" {
			rng = "1mo"
		}
		q.Set("range", rng)
	}

	r, err := v.fetchChart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	rows := candles(r)
	return map[string]any{
		"symbol":   symbol,
		"currency": r.Meta["currency"],
		"interval": interval,
		"prices":   rows,
		"count":    len(rows),
	}, nil
}

type searchResponse struct {
	Quotes []map[string]any `json:"quotes"`
	News   []map[string]any `json:"news"`
}

func (v *Vendor) search(ctx context.Context, query string, quotes, news int) (searchResponse, error) {
	var res searchResponse
	err := v.api.GetCached(ctx, "/v1/finance/search", url.Values{
		"q":           {query},
		"quotesCount": {strconv.Itoa(quotes)},
		"newsCount":   {strconv.Itoa(news)},
	}, &res)
	return res, err
}

func (v *Vendor) handleSearch(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	q, err := toolkit.RequireString(req, "query")
	if err != nil {
		return nil, err
	}
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 50)
	if err != nil {
		return nil, err
	}
	res, err := v.search(ctx, q, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(res.Quotes))
	for _, item := range res.Quotes {
		out = append(out, shape.Compact(map[string]any{
			"symbol":   item["symbol"],
			"name":     firstNonEmpty(item["longname"], item["shortname"]),
			"type":     item["quoteType"],
			"exchange": item["exchDisp"],
			"sector":   item["sector"],
			"industry": item["industry"],
		}))
	}
	return map[string]any{"results": out, "count": len(out)}, nil
}

func (v *Vendor) handleNews(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	q, err := toolkit.RequireString(req, "query")
	if err != nil {
		return nil, err
	}
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 50)
	if err != nil {
		return nil, err
	}
	res, err := v.search(ctx, q, 0, limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(res.News))
	for _, n := range res.News {
		out = append(out, map[string]any{
			"title":     n["title"],
			"publisher": n["publisher"],
			"link":      n["link"],
			"published": shape.Unix(n["providerPublishTime"]),
			"symbols":   n["relatedTickers"],
		})
	}
	return map[string]any{"articles": out, "count": len(out)}, nil
}

func (v *Vendor) handleCompare(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var symbols []string
	seen := map[string]bool{}
	for _, raw := range toolkit.StringList(req, "symbols") {
		s, err := symbolArg(raw)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return nil, toolkit.Invalid("symbols is required")
	}
	if len(symbols) > maxCompare {
		return nil, toolkit.Invalid("at most %d symbols, got %d", maxCompare, len(symbols))
	}

	quotes := make([]map[string]any, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(compareWorkers)
	for i, s := range symbols {
		g.Go(func() error {
			q, err := v.quote(gctx, s)
			var nf *toolkit.NotFoundError
			if errors.As(err, &nf) {
				quotes[i] = map[string]any{"symbol": s, "error": nf.Error()}
				return nil
			}
			quotes[i] = q
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortByChange(quotes)
	return map[string]any{"quotes": quotes, "count": len(quotes)}, nil
}

// sortByChange orders quotes by descending change_percent. Quotes without
// one (unknown symbols, no previous close) go last.
func sortByChange(quotes []map[string]any) {
	pct := func(q map[string]any) (float64, bool) {
		f, ok := q["change_percent"].(float64)
		return f, ok
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		a, aok := pct(quotes[i])
		b, bok := pct(quotes[j])
		if aok != bok {
			return aok
		}
		return a > b
	})
}
