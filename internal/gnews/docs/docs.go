// Package docs provides the GNews documentation resources.
package docs

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RobinCoderZhao/gnews-mcp/pkg/mcpserver"
	"github.com/RobinCoderZhao/gnews-mcp/pkg/scraper"
)

const (
	CheatsheetURI   = "docs://gnews/cheatsheet"
	SearchURI       = "docs://gnews/search"
	TopHeadlinesURI = "docs://gnews/top-headlines"

	SearchPageURL       = "https://docs.gnews.io/endpoints/search-endpoint"
	TopHeadlinesPageURL = "https://docs.gnews.io/endpoints/top-headlines-endpoint"
)

// Cheatsheet summarizes the upstream parameters for both endpoints.
const Cheatsheet = `GNews API Cheat Sheet:
- /search: q, lang, country, max, in, sortby, from, to, page
- /top-headlines: category, lang, country, max, q, from, to, page
- Dates: 'YYYY-MM-DD' or ISO 8601 (e.g. '2024-11-01T08:30:00Z')
- sortby: publishedAt | relevance
- category: general | world | nation | business | technology | entertainment | sports | science | health
- max: 1-100, page: 1 or more
`

// TextResource serves fixed text.
type TextResource struct {
	uri, name, description, text string
}

func (r *TextResource) Definition() mcp.Resource {
	return mcp.NewResource(r.uri, r.name,
		mcp.WithResourceDescription(r.description),
		mcp.WithMIMEType("text/plain"))
}

func (r *TextResource) Read(context.Context) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: r.uri, MIMEType: "text/plain", Text: r.text},
	}, nil
}

// PageResource serves a remote documentation page as markdown text. The
// page is fetched on every read.
type PageResource struct {
	uri, name, url string
	fetcher        scraper.Fetcher
}

func (r *PageResource) Definition() mcp.Resource {
	return mcp.NewResource(r.uri, r.name,
		mcp.WithResourceDescription("Rendered from "+r.url),
		mcp.WithMIMEType("text/markdown"))
}

func (r *PageResource) Read(ctx context.Context) ([]mcp.ResourceContents, error) {
	page, err := r.fetcher.Fetch(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.uri, err)
	}

	var sb strings.Builder
	if page.Title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", page.Title)
	}
	fmt.Fprintf(&sb, "Source: %s\n\n%s\n", r.url, page.Text)
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: r.uri, MIMEType: "text/markdown", Text: sb.String()},
	}, nil
}

// Resources returns the cheat sheet and the two endpoint pages.
func Resources(fetcher scraper.Fetcher) []mcpserver.ResourceHandler {
	return []mcpserver.ResourceHandler{
		&TextResource{
			uri:         CheatsheetURI,
			name:        "GNews API Cheat Sheet",
			description: "Parameters accepted by the search and top-headlines endpoints.",
			text:        Cheatsheet,
		},
		&PageResource{uri: SearchURI, name: "GNews API - Search endpoint", url: SearchPageURL, fetcher: fetcher},
		&PageResource{uri: TopHeadlinesURI, name: "GNews API - Top Headlines endpoint", url: TopHeadlinesPageURL, fetcher: fetcher},
	}
}

// Register adds the documentation resources to host when it supports
// resource registration, and reports whether it did.
func Register(host any, fetcher scraper.Fetcher) bool {
	reg, ok := host.(mcpserver.ResourceRegistrar)
	if !ok {
		return false
	}
	for _, r := range Resources(fetcher) {
		reg.RegisterResource(r)
	}
	return true
}
