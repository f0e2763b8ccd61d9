package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/gnews-mcp/internal/gnews"
	"github.com/RobinCoderZhao/gnews-mcp/pkg/mcpserver"
)

type fakeSearcher struct {
	search    []gnews.SearchParams
	headlines []gnews.HeadlinesParams
	body      json.RawMessage
	err       error
}

func (f *fakeSearcher) Search(_ context.Context, p gnews.SearchParams) (json.RawMessage, error) {
	f.search = append(f.search, p)
	return f.body, f.err
}

func (f *fakeSearcher) TopHeadlines(_ context.Context, p gnews.HeadlinesParams) (json.RawMessage, error) {
	f.headlines = append(f.headlines, p)
	return f.body, f.err
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func kind(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	meta, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content %T", res.StructuredContent)
	k, _ := meta["kind"].(string)
	return k
}

func TestDefinitions(t *testing.T) {
	s := NewSearchTool(nil).Definition()
	assert.Equal(t, "search", s.Name)
	assert.Contains(t, s.InputSchema.Required, "q")
	for _, p := range []string{"q", "lang", "country", "max", "in_fields", "sortby", "date_from", "date_to", "page"} {
		assert.Contains(t, s.InputSchema.Properties, p)
	}

	h := NewHeadlinesTool(nil).Definition()
	assert.Equal(t, "top_headlines", h.Name)
	assert.Empty(t, h.InputSchema.Required)
	for _, p := range []string{"category", "lang", "country", "max", "q", "date_from", "date_to", "page"} {
		assert.Contains(t, h.InputSchema.Properties, p)
	}
}

func TestSearchTool_DecodesArguments(t *testing.T) {
	f := &fakeSearcher{body: json.RawMessage(`{"articles":[]}`)}
	res, err := NewSearchTool(f).Handle(context.Background(), call(map[string]any{
		"q":         "climate",
		"lang":      "FR",
		"max":       float64(20),
		"page":      "2",
		"in_fields": "title",
		"sortby":    "relevance",
		"date_from": "2024-11-01",
		"date_to":   nil,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, `{"articles":[]}`, text(t, res))
	assert.Equal(t, map[string]any{"articles": []any{}}, res.StructuredContent)

	require.Len(t, f.search, 1)
	p := f.search[0]
	assert.Equal(t, "climate", p.Query)
	assert.Equal(t, "FR", *p.Lang)
	assert.Nil(t, p.Country)
	assert.Equal(t, 20, p.Max)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, "title", *p.In)
	assert.Equal(t, "relevance", p.SortBy)
	assert.Equal(t, "2024-11-01", *p.DateFrom)
	assert.Nil(t, p.DateTo)
}

func TestSearchTool_Defaults(t *testing.T) {
	f := &fakeSearcher{body: json.RawMessage(`{}`)}
	_, err := NewSearchTool(f).Handle(context.Background(), call(map[string]any{"q": "x"}))
	require.NoError(t, err)

	require.Len(t, f.search, 1)
	assert.Equal(t, gnews.DefaultMax, f.search[0].Max)
	assert.Equal(t, gnews.DefaultPage, f.search[0].Page)
	assert.Empty(t, f.search[0].SortBy)
}

func TestSearchTool_BadArguments(t *testing.T) {
	cases := map[string]map[string]any{
		"missing q":     {},
		"q not string":  {"q": 12.0},
		"fractional":    {"q": "x", "max": 2.5},
		"huge float":    {"q": "x", "max": 1e20},
		"max not int":   {"q": "x", "max": "ten"},
		"lang not text": {"q": "x", "lang": true},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			f := &fakeSearcher{}
			res, err := NewSearchTool(f).Handle(context.Background(), call(args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Equal(t, "validation", kind(t, res))
			assert.Empty(t, f.search)
		})
	}
}

func TestSearchTool_HugeNumberIsNotAnInteger(t *testing.T) {
	f := &fakeSearcher{}
	res, err := NewSearchTool(f).Handle(context.Background(), call(map[string]any{"q": "x", "page": -1e19}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "parameter 'page' must be an integer", text(t, res))
	assert.Empty(t, f.search)
}

func TestHeadlinesTool_DecodesArguments(t *testing.T) {
	f := &fakeSearcher{body: json.RawMessage(`{}`)}
	_, err := NewHeadlinesTool(f).Handle(context.Background(), call(map[string]any{
		"category": "sports",
		"q":        "final",
		"country":  "gb",
	}))
	require.NoError(t, err)

	require.Len(t, f.headlines, 1)
	p := f.headlines[0]
	assert.Equal(t, "sports", p.Category)
	assert.Equal(t, "final", *p.Query)
	assert.Equal(t, "gb", *p.Country)
}

func TestFailure_DeliveryError(t *testing.T) {
	res := failure(&gnews.DeliveryError{
		Kind:       gnews.KindHTTPStatus,
		StatusCode: 503,
		Detail:     &gnews.ErrorDetail{Raw: "unavailable"},
	})
	assert.True(t, res.IsError)
	assert.Equal(t, "HTTP error 503 from GNews API. Details: unavailable", text(t, res))
	assert.Equal(t, map[string]any{"kind": "http-status", "status": "503", "detail": "unavailable"}, res.StructuredContent)
}

// newPipeline wires the real service, client and MCP server against a stub upstream.
func newPipeline(t *testing.T, handler http.HandlerFunc) (*mcpserver.Server, *atomic.Int32) {
	t.Helper()
	hits := new(atomic.Int32)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(up.Close)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := gnews.DefaultConfig()
	cfg.BaseURL = up.URL
	cfg.InitialBackoff = time.Millisecond
	cfg.Logger = quiet
	client := gnews.NewClient(cfg)
	t.Cleanup(func() { client.Close() })

	svc := gnews.NewService(client, mcpserver.HeadersFromContext, quiet)
	srv := mcpserver.New("gnews", "test", mcpserver.WithLogger(quiet))
	srv.RegisterTools(NewSearchTool(svc), NewHeadlinesTool(svc))
	return srv, hits
}

func toolCall(t *testing.T, srv *mcpserver.Server, key, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h := http.Header{}
	if key != "" {
		h.Set("X-Api-Key", key)
	}
	raw, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)

	resp := srv.HandleRequest(mcpserver.WithHeaders(context.Background(), h), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: raw,
	})
	require.Nil(t, resp.Error)
	res, ok := resp.Result.(*mcp.CallToolResult)
	require.True(t, ok)
	return res
}

func TestPipeline_TopHeadlines(t *testing.T) {
	const payload = `{"totalArticles":1,"articles":[{"title":"Chips","source":{"name":"Wire"}}]}`
	var got http.Header
	srv, hits := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		got = http.Header{}
		for k, v := range r.URL.Query() {
			got[k] = v
		}
		w.Write([]byte(payload))
	})

	res := toolCall(t, srv, "valid-key", "top_headlines", map[string]any{
		"category": "technology", "country": "us", "max": 5,
	})
	assert.False(t, res.IsError)
	assert.Equal(t, payload, text(t, res))
	assert.Equal(t, 1, int(hits.Load()))
	assert.Equal(t, []string{"technology"}, got["category"])
	assert.Equal(t, []string{"5"}, got["max"])
	assert.Equal(t, []string{"valid-key"}, got["apikey"])
}

func TestPipeline_MissingKey(t *testing.T) {
	srv, hits := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	res := toolCall(t, srv, "", "search", map[string]any{"q": "climate"})
	assert.True(t, res.IsError)
	assert.Equal(t, "authentication", kind(t, res))
	assert.Equal(t, 0, int(hits.Load()))
}

func TestPipeline_ValidationNeverReachesNetwork(t *testing.T) {
	srv, hits := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	res := toolCall(t, srv, "k", "search", map[string]any{"q": "climate", "lang": "FR", "max": 150, "page": 1})
	assert.True(t, res.IsError)
	assert.Equal(t, "'max' must be between 1 and 100", text(t, res))
	assert.Equal(t, "validation", kind(t, res))

	res = toolCall(t, srv, "k", "top_headlines", map[string]any{"country": "usa"})
	assert.Equal(t, "validation", kind(t, res))

	res = toolCall(t, srv, "k", "top_headlines", map[string]any{"page": 0})
	assert.Equal(t, "validation", kind(t, res))

	assert.Equal(t, 0, int(hits.Load()))
}

func TestPipeline_UpstreamFailure(t *testing.T) {
	srv, hits := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"errors":["down for maintenance"]}`))
	})

	res := toolCall(t, srv, "k", "search", map[string]any{"q": "climate"})
	assert.True(t, res.IsError)
	assert.Equal(t, "http-status", kind(t, res))
	assert.Contains(t, text(t, res), "HTTP error 503")
	assert.Equal(t, 4, int(hits.Load()))
}
