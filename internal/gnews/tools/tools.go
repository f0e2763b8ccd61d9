// Package tools exposes the gnews operations as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RobinCoderZhao/gnews-mcp/internal/gnews"
)

// Searcher is the subset of *gnews.Service used by the tools.
type Searcher interface {
	Search(ctx context.Context, p gnews.SearchParams) (json.RawMessage, error)
	TopHeadlines(ctx context.Context, p gnews.HeadlinesParams) (json.RawMessage, error)
}

// SearchTool is the "search" tool.
type SearchTool struct {
	svc Searcher
}

// NewSearchTool creates the "search" tool.
func NewSearchTool(svc Searcher) *SearchTool { return &SearchTool{svc: svc} }

func (t *SearchTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Search GNews articles by keyword. Returns the GNews API JSON response unchanged. " +
			"Requires the X-Api-Key header."),
		mcp.WithString("q", mcp.Required(),
			mcp.Description("Search keywords. Supports GNews query syntax (AND, OR, NOT, quotes).")),
	}
	opts = append(opts, commonOptions()...)
	opts = append(opts,
		mcp.WithString("in_fields",
			mcp.Description("Restrict the search to fields, comma-separated: title, description, content.")),
		mcp.WithString("sortby",
			mcp.Enum(gnews.SortOrders...),
			mcp.DefaultString(gnews.SortPublished),
			mcp.Description("Sort order.")),
	)
	return mcp.NewTool("search", opts...)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := arguments(req.GetArguments())

	p := gnews.SearchParams{}
	var err error
	if p.Query, err = a.requiredString("q"); err != nil {
		return failure(err), nil
	}
	if p.In, err = a.optString("in_fields"); err != nil {
		return failure(err), nil
	}
	sortBy, err := a.optString("sortby")
	if err != nil {
		return failure(err), nil
	}
	if sortBy != nil {
		p.SortBy = *sortBy
	}
	if p.Common, err = a.common(); err != nil {
		return failure(err), nil
	}

	body, err := t.svc.Search(ctx, p)
	if err != nil {
		return failure(err), nil
	}
	return success(body), nil
}

// HeadlinesTool is the "top_headlines" tool.
type HeadlinesTool struct {
	svc Searcher
}

// NewHeadlinesTool creates the "top_headlines" tool.
func NewHeadlinesTool(svc Searcher) *HeadlinesTool { return &HeadlinesTool{svc: svc} }

func (t *HeadlinesTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Fetch GNews top headlines for a category. Returns the GNews API JSON response unchanged. " +
			"Requires the X-Api-Key header."),
		mcp.WithString("category",
			mcp.Enum(gnews.Categories...),
			mcp.DefaultString(gnews.CategoryGen),
			mcp.Description("Headline category.")),
	}
	opts = append(opts, commonOptions()...)
	opts = append(opts,
		mcp.WithString("q", mcp.Description("Optional keywords to filter the headlines.")),
	)
	return mcp.NewTool("top_headlines", opts...)
}

func (t *HeadlinesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := arguments(req.GetArguments())

	p := gnews.HeadlinesParams{}
	category, err := a.optString("category")
	if err != nil {
		return failure(err), nil
	}
	if category != nil {
		p.Category = *category
	}
	if p.Query, err = a.optString("q"); err != nil {
		return failure(err), nil
	}
	if p.Common, err = a.common(); err != nil {
		return failure(err), nil
	}

	body, err := t.svc.TopHeadlines(ctx, p)
	if err != nil {
		return failure(err), nil
	}
	return success(body), nil
}

func commonOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("lang", mcp.Description("2-letter language code, e.g. 'en', 'fr'.")),
		mcp.WithString("country", mcp.Description("2-letter country code, e.g. 'us', 'fr'.")),
		mcp.WithNumber("max",
			mcp.Min(gnews.MinMax), mcp.Max(gnews.MaxMax),
			mcp.DefaultNumber(gnews.DefaultMax),
			mcp.Description("Number of articles to return (1-100).")),
		mcp.WithString("date_from",
			mcp.Description("Oldest publication date: YYYY-MM-DD or ISO 8601 timestamp (e.g. 2024-11-01T08:30:00Z).")),
		mcp.WithString("date_to",
			mcp.Description("Newest publication date: YYYY-MM-DD or ISO 8601 timestamp.")),
		mcp.WithNumber("page",
			mcp.Min(1),
			mcp.DefaultNumber(gnews.DefaultPage),
			mcp.Description("Result page, starting at 1.")),
	}
}

// success returns the upstream body verbatim as text, plus its decoded form
// as structured content.
func success(body json.RawMessage) *mcp.CallToolResult {
	result := mcp.NewToolResultText(string(body))
	var structured any
	if err := json.Unmarshal(body, &structured); err == nil {
		result.StructuredContent = structured
	}
	return result
}

// failure turns an operation error into an MCP error result carrying the
// error kind (and upstream status, when there is one).
func failure(err error) *mcp.CallToolResult {
	result := mcp.NewToolResultError(err.Error())
	meta := map[string]any{"kind": gnews.Kind(err)}
	var derr *gnews.DeliveryError
	if errors.As(err, &derr) {
		meta["status"] = derr.Status()
		if derr.Detail != nil {
			meta["detail"] = derr.Detail.String()
		}
	}
	var verr *gnews.ValidationError
	if errors.As(err, &verr) {
		meta["field"] = verr.Field
	}
	result.StructuredContent = meta
	return result
}

// arguments decodes loosely typed JSON tool arguments.
type arguments map[string]any

func (a arguments) optString(name string) (*string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &gnews.ValidationError{Field: name, Message: fmt.Sprintf("parameter '%s' must be a string", name)}
	}
	return &s, nil
}

func (a arguments) requiredString(name string) (string, error) {
	s, err := a.optString(name)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", &gnews.ValidationError{Field: name, Message: fmt.Sprintf("parameter '%s' is required", name)}
	}
	return *s, nil
}

func (a arguments) optInt(name string, def int) (int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	notInt := &gnews.ValidationError{Field: name, Message: fmt.Sprintf("parameter '%s' must be an integer", name)}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, notInt
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, notInt
		}
		return i, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, notInt
		}
		return i, nil
	}
	return 0, notInt
}

func (a arguments) common() (gnews.Common, error) {
	c := gnews.DefaultCommon()
	var err error
	if c.Lang, err = a.optString("lang"); err != nil {
		return c, err
	}
	if c.Country, err = a.optString("country"); err != nil {
		return c, err
	}
	if c.Max, err = a.optInt("max", gnews.DefaultMax); err != nil {
		return c, err
	}
	if c.Page, err = a.optInt("page", gnews.DefaultPage); err != nil {
		return c, err
	}
	if c.DateFrom, err = a.optString("date_from"); err != nil {
		return c, err
	}
	if c.DateTo, err = a.optString("date_to"); err != nil {
		return c, err
	}
	return c, nil
}
