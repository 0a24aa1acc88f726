package odata

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var copyFields = NewBuilder(
	Field{Key: "search", Path: "BookTitle", Kind: Contains},
	Field{Key: "status", Path: "CopyStatus", Kind: Equals, Allowed: []string{"Available", "Borrowed", "Reserved", "Lost", "Damaged"}},
	Field{Key: "category", Path: "CategoryName", Kind: Contains},
	Field{Key: "year", Path: "PublicationYear", Kind: Number},
	Field{Key: "location", Path: "Location", Kind: Compound, Parts: []Part{
		{Key: "floor", Prefix: "floor "},
		{Key: "shelf", Prefix: "shelf "},
	}},
)

func TestBuildEmpty(t *testing.T) {
	got, err := copyFields.Build(Criteria{"search": "   ", "unknown": "x"})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestBuildAllKinds(t *testing.T) {
	got, err := copyFields.Build(Criteria{
		"search":   "Dune",
		"status":   "borrowed",
		"category": "Sci-Fi",
		"year":     "1965",
		"floor":    "2",
		"shelf":    "B",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"contains(tolower(BookTitle), 'dune') and CopyStatus eq 'Borrowed' and contains(tolower(CategoryName), 'sci-fi') and PublicationYear eq 1965 and "+
			"(contains(tolower(Location), 'floor 2') and contains(tolower(Location), 'shelf b'))",
		got)
}

func TestBuildCompoundSinglePart(t *testing.T) {
	got, err := copyFields.Build(Criteria{"shelf": "C"})
	require.NoError(t, err)
	assert.Equal(t, "(contains(tolower(Location), 'shelf c'))", got)
}

func TestBuildQuoteEscaping(t *testing.T) {
	got, err := copyFields.Build(Criteria{"search": "O'Brien"})
	require.NoError(t, err)
	assert.Equal(t, "contains(tolower(BookTitle), 'o''brien')", got)
}

func TestBuildRejectsInvalid(t *testing.T) {
	cases := []Criteria{
		{"year": "nineteen"},
		{"year": "NaN"},
		{"status": "Stolen"},
		{"search": "line\nbreak"},
	}
	for _, c := range cases {
		_, err := copyFields.Build(c)
		assert.True(t, errors.Is(err, ErrInvalidValue), "%v", c)
	}
}

func TestSpecialCharactersPassThrough(t *testing.T) {
	got, err := ContainsClause("Title", "50% & more / (vol. 2)")
	require.NoError(t, err)
	assert.Equal(t, "contains(tolower(Title), '50% & more / (vol. 2)')", got)
}

func unquote(lit string) string {
	return strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
}

func TestLiteralRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.StringMatching(`[a-zA-Z0-9 '%&/()\-.]{0,30}`).Draw(t, "v")
		lit, err := Literal(v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(lit, "'") || !strings.HasSuffix(lit, "'") {
			t.Fatalf("literal not quoted: %s", lit)
		}
		if got := unquote(lit); got != v {
			t.Fatalf("round trip: got %q want %q", got, v)
		}
		inner := lit[1 : len(lit)-1]
		if strings.Count(strings.ReplaceAll(inner, "''", ""), "'") != 0 {
			t.Fatalf("unpaired quote in %s", lit)
		}
	})
}

func TestOneClausePerActiveField(t *testing.T) {
	b := NewBuilder(
		Field{Key: "a", Path: "A", Kind: Contains},
		Field{Key: "b", Path: "B", Kind: Contains},
		Field{Key: "c", Path: "C", Kind: Equals},
		Field{Key: "d", Path: "D", Kind: Number},
	)
	rapid.Check(t, func(t *rapid.T) {
		c := Criteria{}
		active := 0
		for _, k := range []string{"a", "b", "c"} {
			if rapid.Bool().Draw(t, "set-"+k) {
				c[k] = rapid.StringMatching(`[a-z]{1,10}`).Draw(t, k)
				active++
			}
		}
		if rapid.Bool().Draw(t, "set-d") {
			c["d"] = strconv.Itoa(rapid.IntRange(0, 3000).Draw(t, "d"))
			active++
		}
		got, err := b.Build(c)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if active == 0 {
			if got != "" {
				t.Fatalf("expected empty filter, got %q", got)
			}
			return
		}
		if n := len(strings.Split(got, " and ")); n != active {
			t.Fatalf("got %d clauses for %d active fields: %s", n, active, got)
		}
		for k, v := range c {
			if k == "d" {
				continue
			}
			if !strings.Contains(got, "'"+v+"'") {
				t.Fatalf("value %q missing from %s", v, got)
			}
		}
	})
}
