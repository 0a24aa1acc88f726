package services

import (
	"strconv"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
)

// Attribute is any id+name catalog entry: category, edition, cover type,
// paper quality.
type Attribute struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type attributeWire struct {
	ID   int64  `json:"Id"`
	Name string `json:"Name"`
}

func attributeView(w attributeWire) Attribute { return Attribute{ID: w.ID, Name: w.Name} }
func attributeToWire(v Attribute) attributeWire { return attributeWire{ID: v.ID, Name: v.Name} }

type Publisher struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type publisherWire struct {
	ID      int64  `json:"Id"`
	Name    string `json:"Name"`
	Address string `json:"Address,omitempty"`
}

func publisherView(w publisherWire) Publisher {
	return Publisher{ID: w.ID, Name: w.Name, Address: w.Address}
}

func publisherToWire(v Publisher) publisherWire {
	return publisherWire{ID: v.ID, Name: v.Name, Address: v.Address}
}

type Author struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullName"`
	Biography string `json:"biography,omitempty"`
}

type authorWire struct {
	ID        int64  `json:"Id"`
	FullName  string `json:"FullName"`
	Biography string `json:"Biography,omitempty"`
}

func authorView(w authorWire) Author {
	return Author{ID: w.ID, FullName: w.FullName, Biography: w.Biography}
}

func authorToWire(v Author) authorWire {
	return authorWire{ID: v.ID, FullName: v.FullName, Biography: v.Biography}
}

// NameSearch filters catalog lists by a "search" criterion on Name.
var NameSearch = odata.NewBuilder(odata.Field{Key: "search", Path: "Name", Kind: odata.Contains})

// AuthorSearch filters authors by a "search" criterion on FullName.
var AuthorSearch = odata.NewBuilder(odata.Field{Key: "search", Path: "FullName", Kind: odata.Contains})

type Catalog struct {
	Categories     Collection[Attribute]
	Publishers     Collection[Publisher]
	Editions       Collection[Attribute]
	CoverTypes     Collection[Attribute]
	PaperQualities Collection[Attribute]
	Authors        Collection[Author]
}

func NewCatalog(c *backend.Client) *Catalog {
	attr := func(name string) Collection[Attribute] {
		return NewResource(c, name, attributeView, attributeToWire)
	}
	return &Catalog{
		Categories:     attr("Category"),
		Publishers:     NewResource(c, "Publisher", publisherView, publisherToWire),
		Editions:       attr("Edition"),
		CoverTypes:     attr("CoverType"),
		PaperQualities: attr("PaperQuality"),
		Authors:        NewResource(c, "Author", authorView, authorToWire),
	}
}

// Attributes returns the id+name resources keyed by their admin path segment.
func (c *Catalog) Attributes() map[string]Collection[Attribute] {
	return map[string]Collection[Attribute]{
		"categories":      c.Categories,
		"editions":        c.Editions,
		"cover-types":     c.CoverTypes,
		"paper-qualities": c.PaperQualities,
	}
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
