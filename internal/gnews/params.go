package gnews

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultMax    = 10
	DefaultPage   = 1
	MinMax        = 1
	MaxMax        = 100
	midnightUTC   = "T00:00:00Z"
	SortPublished = "publishedAt"
	SortRelevance = "relevance"
	CategoryGen   = "general"
)

var (
	codePattern = regexp.MustCompile(`^[a-zA-Z]{2}$`)
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Categories is the closed set of top-headlines categories.
var Categories = []string{
	"general", "world", "nation", "business", "technology",
	"entertainment", "sports", "science", "health",
}

// SortOrders lists the accepted search sort orders.
var SortOrders = []string{SortPublished, SortRelevance}

// Common holds the arguments shared by both endpoints. Nil pointers are
// absent values and are never sent upstream.
type Common struct {
	Lang     *string
	Country  *string
	Max      int
	Page     int
	DateFrom *string
	DateTo   *string
}

// DefaultCommon returns Common with the documented defaults applied.
func DefaultCommon() Common {
	return Common{Max: DefaultMax, Page: DefaultPage}
}

// Validate checks the shared arguments and returns the first violation.
func (c Common) Validate() error {
	if c.Lang != nil && !codePattern.MatchString(*c.Lang) {
		return invalid("lang", "parameter 'lang' invalid (2 letters, e.g. 'fr')")
	}
	if c.Country != nil && !codePattern.MatchString(*c.Country) {
		return invalid("country", "parameter 'country' invalid (2 letters, e.g. 'fr')")
	}
	if c.Page < 1 {
		return invalid("page", "'page' must be at least 1")
	}
	if c.Max < MinMax || c.Max > MaxMax {
		return invalid("max", "'max' must be between %d and %d", MinMax, MaxMax)
	}
	for _, d := range []struct {
		name  string
		value *string
	}{{"date_from", c.DateFrom}, {"date_to", c.DateTo}} {
		if d.value == nil {
			continue
		}
		if len(*d.value) == 10 && !datePattern.MatchString(*d.value) {
			return invalid(d.name, "'%s' is invalid, ISO 8601 format required (YYYY-MM-DD or full timestamp)", d.name)
		}
	}
	return nil
}

// values builds the wire parameters for the shared arguments.
func (c Common) values() url.Values {
	v := url.Values{}
	setLower(v, "lang", c.Lang)
	setLower(v, "country", c.Country)
	v.Set("max", strconv.Itoa(clamp(c.Max, MinMax, MaxMax)))
	if from := isoDate(c.DateFrom); from != "" {
		v.Set("from", from)
	}
	if to := isoDate(c.DateTo); to != "" {
		v.Set("to", to)
	}
	v.Set("page", strconv.Itoa(c.Page))
	return v
}

// SearchParams are the arguments of the search operation.
type SearchParams struct {
	Query  string
	In     *string
	SortBy string
	Common
}

// Validate checks the search arguments.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return invalid("q", "parameter 'q' is required")
	}
	if p.SortBy != "" && !slices.Contains(SortOrders, p.SortBy) {
		return invalid("sortby", "parameter 'sortby' must be one of: %s", strings.Join(SortOrders, ", "))
	}
	return p.Common.Validate()
}

// Values returns the normalized query for GET /search, with the key set last.
func (p SearchParams) Values(key string) url.Values {
	v := p.Common.values()
	v.Set("q", p.Query)
	setString(v, "in", p.In)
	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = SortPublished
	}
	v.Set("sortby", sortBy)
	v.Set("apikey", key)
	return v
}

// HeadlinesParams are the arguments of the top_headlines operation.
type HeadlinesParams struct {
	Category string
	Query    *string
	Common
}

// Validate checks the top-headlines arguments.
func (p HeadlinesParams) Validate() error {
	if p.Category != "" && !slices.Contains(Categories, p.Category) {
		return invalid("category", "parameter 'category' must be one of: %s", strings.Join(Categories, ", "))
	}
	return p.Common.Validate()
}

// Values returns the normalized query for GET /top-headlines, with the key set last.
func (p HeadlinesParams) Values(key string) url.Values {
	v := p.Common.values()
	category := p.Category
	if category == "" {
		category = CategoryGen
	}
	v.Set("category", category)
	setString(v, "q", p.Query)
	v.Set("apikey", key)
	return v
}

// isoDate turns a bare YYYY-MM-DD date into a midnight UTC timestamp.
// Other non-empty values pass through trimmed; absent or blank values stay absent.
func isoDate(value *string) string {
	if value == nil {
		return ""
	}
	v := strings.TrimSpace(*value)
	if len(v) == 10 && datePattern.MatchString(v) {
		return v + midnightUTC
	}
	return v
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

func setLower(v url.Values, name string, value *string) {
	if value != nil && *value != "" {
		v.Set(name, strings.ToLower(*value))
	}
}

func setString(v url.Values, name string, value *string) {
	if value != nil && *value != "" {
		v.Set(name, *value)
	}
}
