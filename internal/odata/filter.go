// Package odata builds the $filter expressions and query strings understood by
// the library API.
package odata

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrInvalidValue = errors.New("odata: invalid filter value")

type Kind int

const (
	// Contains is a case-insensitive substring match.
	Contains Kind = iota
	// Equals is an exact string match.
	Equals
	// Number is an exact numeric match, emitted unquoted.
	Number
	// Compound groups several Contains matches on one property.
	Compound
)

// Part is one token of a Compound field, e.g. "floor 2" inside a free-text
// shelving location.
type Part struct {
	Key    string
	Prefix string
}

// Field maps a criteria key onto a backend property.
type Field struct {
	Key     string
	Path    string
	Kind    Kind
	Allowed []string
	Parts   []Part
}

// Criteria are raw user inputs keyed by field key. Blank values are inactive.
type Criteria map[string]string

type Builder struct {
	fields []Field
}

func NewBuilder(fields ...Field) Builder {
	return Builder{fields: fields}
}

func (b Builder) Fields() []Field { return b.fields }

// Build returns the filter expression for c, or "" when no field is active.
// Clauses follow field declaration order and are joined with "and". Keys not
// declared on the builder are ignored.
func (b Builder) Build(c Criteria) (string, error) {
	var clauses []string
	for _, f := range b.fields {
		clause, err := f.clause(c)
		if err != nil {
			return "", err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	return strings.Join(clauses, " and "), nil
}

func (f Field) clause(c Criteria) (string, error) {
	if f.Kind == Compound {
		return f.compound(c)
	}
	v := strings.TrimSpace(c[f.Key])
	if v == "" {
		return "", nil
	}
	switch f.Kind {
	case Contains:
		return ContainsClause(f.Path, v)
	case Equals:
		if len(f.Allowed) > 0 {
			canon, ok := oneOf(v, f.Allowed)
			if !ok {
				return "", fmt.Errorf("%w: %s must be one of %s", ErrInvalidValue, f.Key, strings.Join(f.Allowed, ", "))
			}
			v = canon
		}
		return EqualsClause(f.Path, v)
	case Number:
		n, err := number(v)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %q is not a number", ErrInvalidValue, f.Key, v)
		}
		return fmt.Sprintf("%s eq %s", f.Path, n), nil
	}
	return "", fmt.Errorf("odata: unknown field kind %d for %s", f.Kind, f.Key)
}

func (f Field) compound(c Criteria) (string, error) {
	var subs []string
	for _, p := range f.Parts {
		v := strings.TrimSpace(c[p.Key])
		if v == "" {
			continue
		}
		s, err := ContainsClause(f.Path, p.Prefix+v)
		if err != nil {
			return "", err
		}
		subs = append(subs, s)
	}
	if len(subs) == 0 {
		return "", nil
	}
	return "(" + strings.Join(subs, " and ") + ")", nil
}

// ContainsClause renders contains(tolower(path), '<lowercased value>').
func ContainsClause(path, value string) (string, error) {
	lit, err := Literal(cases.Lower(language.Und).String(value))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("contains(tolower(%s), %s)", path, lit), nil
}

func EqualsClause(path, value string) (string, error) {
	lit, err := Literal(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s eq %s", path, lit), nil
}

// Literal quotes v as an OData string literal, doubling embedded quotes.
// Control characters have no literal form and are rejected.
func Literal(v string) (string, error) {
	for _, r := range v {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("%w: control character %U", ErrInvalidValue, r)
		}
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
}

func number(v string) (string, error) {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", ErrInvalidValue
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func oneOf(v string, allowed []string) (string, bool) {
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a, true
		}
	}
	return "", false
}
