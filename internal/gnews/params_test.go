package gnews

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestCommonValidate_Codes(t *testing.T) {
	for _, bad := range []string{"", "f", "fra", "f1", "1a", "é!", " fr"} {
		c := DefaultCommon()
		c.Lang = ptr(bad)
		err := c.Validate()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "lang %q", bad)
		assert.Equal(t, "lang", verr.Field)

		c = DefaultCommon()
		c.Country = ptr(bad)
		require.ErrorAs(t, c.Validate(), &verr, "country %q", bad)
		assert.Equal(t, "country", verr.Field)
	}

	c := DefaultCommon()
	c.Lang = ptr("FR")
	c.Country = ptr("us")
	assert.NoError(t, c.Validate())
}

func TestCommonValidate_Page(t *testing.T) {
	c := DefaultCommon()
	c.Page = 1
	assert.NoError(t, c.Validate())

	for _, page := range []int{0, -1, -100} {
		c.Page = page
		err := c.Validate()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "page", verr.Field)
		assert.Contains(t, err.Error(), "at least 1")
	}
}

func TestCommonValidate_Max(t *testing.T) {
	c := DefaultCommon()
	for _, n := range []int{1, 50, 100} {
		c.Max = n
		assert.NoError(t, c.Validate(), "max %d", n)
	}
	for _, n := range []int{0, -5, 101, 150} {
		c.Max = n
		err := c.Validate()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "max %d", n)
		assert.Equal(t, "'max' must be between 1 and 100", err.Error())
	}
}

func TestCommonValidate_Dates(t *testing.T) {
	valid := []string{"2024-11-01", "2024-11-01T08:30:00Z", "yesterday", ""}
	for _, d := range valid {
		c := DefaultCommon()
		c.DateFrom = ptr(d)
		c.DateTo = ptr(d)
		assert.NoError(t, c.Validate(), "date %q", d)
	}

	for _, d := range []string{"2024/11/01", "01-11-2024", "abcdefghij"} {
		c := DefaultCommon()
		c.DateTo = ptr(d)
		var verr *ValidationError
		require.ErrorAs(t, c.Validate(), &verr, "date %q", d)
		assert.Equal(t, "date_to", verr.Field)
	}
}

func TestSearchValidate(t *testing.T) {
	p := SearchParams{Query: "climate", Common: DefaultCommon()}
	assert.NoError(t, p.Validate())

	p.Query = "  "
	assert.Error(t, p.Validate())

	p.Query = "climate"
	p.SortBy = "date"
	var verr *ValidationError
	require.ErrorAs(t, p.Validate(), &verr)
	assert.Equal(t, "sortby", verr.Field)

	p.SortBy = SortRelevance
	assert.NoError(t, p.Validate())
}

func TestHeadlinesValidate(t *testing.T) {
	p := HeadlinesParams{Common: DefaultCommon()}
	assert.NoError(t, p.Validate())

	for _, cat := range Categories {
		p.Category = cat
		assert.NoError(t, p.Validate(), cat)
	}

	p.Category = "politics"
	var verr *ValidationError
	require.ErrorAs(t, p.Validate(), &verr)
	assert.Equal(t, "category", verr.Field)
}

func TestIsoDate(t *testing.T) {
	assert.Equal(t, "2024-11-01T00:00:00Z", isoDate(ptr("2024-11-01")))
	assert.Equal(t, "2024-11-01T00:00:00Z", isoDate(ptr(" 2024-11-01 ")))
	assert.Equal(t, "2024-11-01T08:30:00Z", isoDate(ptr("2024-11-01T08:30:00Z")))
	assert.Equal(t, "", isoDate(nil))
	assert.Equal(t, "", isoDate(ptr("")))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, clamp(-3, 1, 100))
	assert.Equal(t, 100, clamp(500, 1, 100))
	for n := 1; n <= 100; n++ {
		assert.Equal(t, n, clamp(n, 1, 100))
	}
}

func TestSearchValues(t *testing.T) {
	p := SearchParams{
		Query: "climate",
		In:    ptr("title,description"),
		Common: Common{
			Lang:     ptr("FR"),
			Country:  ptr("Fr"),
			Max:      25,
			Page:     2,
			DateFrom: ptr("2024-11-01"),
			DateTo:   ptr("2024-11-02T08:30:00Z"),
		},
	}
	v := p.Values("secret")

	assert.Equal(t, "climate", v.Get("q"))
	assert.Equal(t, "fr", v.Get("lang"))
	assert.Equal(t, "fr", v.Get("country"))
	assert.Equal(t, "25", v.Get("max"))
	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "title,description", v.Get("in"))
	assert.Equal(t, SortPublished, v.Get("sortby"))
	assert.Equal(t, "2024-11-01T00:00:00Z", v.Get("from"))
	assert.Equal(t, "2024-11-02T08:30:00Z", v.Get("to"))
	assert.Equal(t, "secret", v.Get("apikey"))
}

func TestValues_AbsentFieldsOmitted(t *testing.T) {
	v := SearchParams{Query: "x", Common: DefaultCommon()}.Values("k")
	for _, name := range []string{"lang", "country", "in", "from", "to"} {
		assert.False(t, v.Has(name), name)
	}

	h := HeadlinesParams{Common: DefaultCommon()}.Values("k")
	assert.Equal(t, CategoryGen, h.Get("category"))
	assert.False(t, h.Has("q"))
	assert.Equal(t, "10", h.Get("max"))
	assert.Equal(t, "1", h.Get("page"))
}

func TestValues_KeyNotOverridable(t *testing.T) {
	h := HeadlinesParams{Query: ptr("apikey=evil"), Common: DefaultCommon()}.Values("real")
	assert.Equal(t, []string{"real"}, h["apikey"])
}
