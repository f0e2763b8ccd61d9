// Package scraper fetches HTML documents and renders them as readable text.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 4 << 20

// Options configures a Fetcher.
type Options struct {
	UserAgent  string        `yaml:"user_agent" env:"DOCS_USER_AGENT"`
	Timeout    time.Duration `yaml:"timeout" env:"DOCS_TIMEOUT"`
	RetryCount int           `yaml:"retry_count" env:"DOCS_RETRY_COUNT"`
}

// DefaultOptions returns the defaults used for documentation pages.
func DefaultOptions() Options {
	return Options{
		UserAgent:  "gnews-mcp/1.0 (+https://gnews.io)",
		Timeout:    15 * time.Second,
		RetryCount: 2,
	}
}

// Page is a fetched and parsed HTML document.
type Page struct {
	URL        string
	StatusCode int
	Title      string
	Text       string
	FetchedAt  time.Time
	Duration   time.Duration
}

// Fetcher retrieves a page by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher implements Fetcher over plain HTTP.
type HTTPFetcher struct {
	client *http.Client
	opts   Options
}

// NewHTTPFetcher creates a fetcher. An empty UserAgent or Timeout falls back
// to DefaultOptions.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Fetch retrieves url, retrying transport failures and 5xx responses, and
// extracts the title and text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 0

	var page *Page
	op := func() error {
		p, err := f.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		if p.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: status %d", url, p.StatusCode)
		}
		if p.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", url, p.StatusCode))
		}
		page = p
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.opts.RetryCount)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	page.Duration = time.Since(start)
	return page, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	title, text := Parse(string(body))
	return &Page{
		URL:        url,
		StatusCode: resp.StatusCode,
		Title:      title,
		Text:       text,
		FetchedAt:  time.Now(),
	}, nil
}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "noscript": true, "svg": true, "iframe": true,
	"button": true, "form": true,
}

// Parse returns the document title and its readable text.
func Parse(htmlContent string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", htmlContent
	}
	var sb strings.Builder
	walk(doc, &sb, false)
	return findTitle(doc), tidy(sb.String())
}

// ExtractText converts HTML to markdown-ish text, dropping navigation and scripts.
func ExtractText(htmlContent string) string {
	_, text := Parse(htmlContent)
	return text
}

func walk(n *html.Node, sb *strings.Builder, pre bool) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] || n.Data == "title" {
			return
		}
		switch n.Data {
		case "h1":
			sb.WriteString("\n# ")
		case "h2":
			sb.WriteString("\n## ")
		case "h3":
			sb.WriteString("\n### ")
		case "h4":
			sb.WriteString("\n#### ")
		case "li":
			sb.WriteString("\n- ")
		case "pre":
			sb.WriteString("\n```\n")
			pre = true
		case "code":
			if !pre {
				sb.WriteString("`" + strings.Join(strings.Fields(textOf(n)), " ") + "` ")
				return
			}
		case "br", "p", "div", "tr", "table":
			sb.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		if pre {
			sb.WriteString(n.Data)
		} else if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
			sb.WriteString(s)
			sb.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, sb, pre)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "pre":
			sb.WriteString("\n```\n")
		case "td", "th":
			sb.WriteString("| ")
		case "h1", "h2", "h3", "h4", "p", "tr":
			sb.WriteString("\n")
		}
	}
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}

// tidy trims trailing spaces and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}
