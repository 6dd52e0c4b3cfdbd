// Package yahoofinance exposes Yahoo Finance quotes, price history, symbol
// search and news as MCP tools. The public endpoints need no credentials;
// responses are read through the response cache.
package yahoofinance

import (
	"context"
	"math"
	"net/url"

	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name           = "yahoofinance"
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// Yahoo answers 429 to non-browser user agents.
	browserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Yahoo Finance",
	DefaultPort: 5008,
	New:         New,
}

type Vendor struct {
	api *upstream.Client
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	api := upstream.New(deps.Upstream.WithBaseURL(DefaultBaseURL), upstream.None(),
		upstream.WithHeader("User-Agent", browserAgent),
		upstream.WithErrorDecoder(decodeError),
		upstream.WithLogger(deps.Logger))
	return &Vendor{api: api}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

// decodeError reads {"chart":{"error":{"code","description"}}} and the
// finance.error variant used by the search endpoint.
func decodeError(_ int, body []byte) string {
	doc, err := shape.Decode(body)
	if err != nil {
		return ""
	}
	for _, p := range []string{"chart.error.description", "finance.error.description", "chart.error.code"} {
		if s := shape.String(shape.Path(doc, p)); s != "" {
			return s
		}
	}
	return ""
}

// chart is the v8 chart response.
type chart struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       map[string]any `json:"meta"`
	Timestamp  []int64        `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// fetchChart loads the chart for symbol. A symbol Yahoo does not know is
// reported as not found.
func (v *Vendor) fetchChart(ctx context.Context, symbol string, q url.Values) (chartResult, error) {
	var c chart
	err := v.api.GetCached(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q, &c)
	if err := toolkit.Lookup("symbol "+symbol, err); err != nil {
		return chartResult{}, err
	}
	if len(c.Chart.Result) == 0 {
		return chartResult{}, toolkit.NotFound("symbol " + symbol)
	}
	return c.Chart.Result[0], nil
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

// quoteOut summarizes chart metadata as a quote.
func quoteOut(meta map[string]any) map[string]any {
	price := shape.Float(meta["regularMarketPrice"])
	prev := shape.Float(meta["chartPreviousClose"])
	if p := shape.Float(meta["previousClose"]); p != 0 {
		prev = p
	}
	out := map[string]any{
		"symbol":         meta["symbol"],
		"name":           firstNonEmpty(meta["longName"], meta["shortName"]),
		"currency":       meta["currency"],
		"exchange":       meta["fullExchangeName"],
		"price":          price,
		"previous_close": prev,
		"day_high":       meta["regularMarketDayHigh"],
		"day_low":        meta["regularMarketDayLow"],
		"volume":         meta["regularMarketVolume"],
		"52_week_high":   meta["fiftyTwoWeekHigh"],
		"52_week_low":    meta["fiftyTwoWeekLow"],
		"market_time":    shape.Unix(meta["regularMarketTime"]),
	}
	if prev != 0 {
		out["change"] = round(price-prev, 4)
		out["change_percent"] = round((price-prev)/prev*100, 2)
	}
	return out
}

func firstNonEmpty(vals ...any) string {
	for _, v := range vals {
		if s := shape.String(v); s != "" {
			return s
		}
	}
	return ""
}

// candles zips the chart arrays into rows. Rows without a close are
// skipped; Yahoo emits them for halted sessions.
func candles(r chartResult) []map[string]any {
	out := make([]map[string]any, 0, len(r.Timestamp))
	if len(r.Indicators.Quote) == 0 {
		return out
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}
	at := func(s []*float64, i int) any {
		if i >= len(s) || s[i] == nil {
			return nil
		}
		return round(*s[i], 4)
	}
	for i, ts := range r.Timestamp {
		if at(q.Close, i) == nil {
			continue
		}
		row := map[string]any{
			"date":   shape.Unix(ts),
			"open":   at(q.Open, i),
			"high":   at(q.High, i),
			"low":    at(q.Low, i),
			"close":  at(q.Close, i),
			"volume": at(q.Volume, i),
		}
		if a := at(adj, i); a != nil {
			row["adj_close"] = a
		}
		out = append(out, row)
	}
	return out
}
