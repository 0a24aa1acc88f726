package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
)

var CopyStatuses = []string{"Available", "Borrowed", "Reserved", "Lost", "Damaged"}

// Location is where a copy is shelved. The backend stores it as free text
// such as "Floor 2, Shelf B".
type Location struct {
	Floor string `json:"floor,omitempty"`
	Shelf string `json:"shelf,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

var (
	floorRe = regexp.MustCompile(`(?i)\bfloor\s+([^,;]+)`)
	shelfRe = regexp.MustCompile(`(?i)\bshelf\s+([^,;]+)`)
)

func ParseLocation(raw string) Location {
	loc := Location{Raw: strings.TrimSpace(raw)}
	if m := floorRe.FindStringSubmatch(raw); m != nil {
		loc.Floor = strings.TrimSpace(m[1])
	}
	if m := shelfRe.FindStringSubmatch(raw); m != nil {
		loc.Shelf = strings.TrimSpace(m[1])
	}
	return loc
}

func (l Location) String() string {
	var parts []string
	if l.Floor != "" {
		parts = append(parts, "Floor "+l.Floor)
	}
	if l.Shelf != "" {
		parts = append(parts, "Shelf "+l.Shelf)
	}
	if len(parts) == 0 {
		return l.Raw
	}
	return strings.Join(parts, ", ")
}

type BookCopy struct {
	ID              int64    `json:"id"`
	VolumeID        int64    `json:"volumeId"`
	BookTitle       string   `json:"bookTitle"`
	Barcode         string   `json:"barcode,omitempty"`
	Status          string   `json:"status"`
	Location        Location `json:"location"`
	CategoryName    string   `json:"categoryName,omitempty"`
	PublicationYear int      `json:"publicationYear,omitempty"`
}

type bookCopyWire struct {
	ID              int64  `json:"Id"`
	VolumeID        int64  `json:"VolumeId"`
	BookTitle       string `json:"BookTitle,omitempty"`
	Barcode         string `json:"Barcode,omitempty"`
	CopyStatus      string `json:"CopyStatus"`
	Location        string `json:"Location,omitempty"`
	CategoryName    string `json:"CategoryName,omitempty"`
	PublicationYear int    `json:"PublicationYear,omitempty"`
}

func bookCopyView(w bookCopyWire) BookCopy {
	return BookCopy{
		ID:              w.ID,
		VolumeID:        w.VolumeID,
		BookTitle:       w.BookTitle,
		Barcode:         w.Barcode,
		Status:          w.CopyStatus,
		Location:        ParseLocation(w.Location),
		CategoryName:    w.CategoryName,
		PublicationYear: w.PublicationYear,
	}
}

func bookCopyToWire(v BookCopy) bookCopyWire {
	return bookCopyWire{
		ID:              v.ID,
		VolumeID:        v.VolumeID,
		Barcode:         v.Barcode,
		CopyStatus:      v.Status,
		Location:        v.Location.String(),
		PublicationYear: v.PublicationYear,
	}
}

// CopyFilters are the criteria of the book copies list.
type CopyFilters struct {
	Search          string `json:"search,omitempty"`
	CopyStatus      string `json:"copyStatus,omitempty"`
	CategoryName    string `json:"categoryName,omitempty"`
	PublicationYear string `json:"publicationYear,omitempty"`
	Floor           string `json:"floor,omitempty"`
	Shelf           string `json:"shelf,omitempty"`
}

func (f CopyFilters) Criteria() odata.Criteria {
	return odata.Criteria{
		"search":   f.Search,
		"status":   f.CopyStatus,
		"category": f.CategoryName,
		"year":     f.PublicationYear,
		"floor":    f.Floor,
		"shelf":    f.Shelf,
	}
}

// CopySearch builds the $filter of the book copies list.
var CopySearch = odata.NewBuilder(
	odata.Field{Key: "search", Path: "BookTitle", Kind: odata.Contains},
	odata.Field{Key: "status", Path: "CopyStatus", Kind: odata.Equals, Allowed: CopyStatuses},
	odata.Field{Key: "category", Path: "CategoryName", Kind: odata.Contains},
	odata.Field{Key: "year", Path: "PublicationYear", Kind: odata.Number},
	odata.Field{Key: "location", Path: "Location", Kind: odata.Compound, Parts: []odata.Part{
		{Key: "floor", Prefix: "floor "},
		{Key: "shelf", Prefix: "shelf "},
	}},
)

type BookCopies struct {
	Collection[BookCopy]
	c *backend.Client
}

func NewBookCopies(c *backend.Client) *BookCopies {
	return &BookCopies{Collection: NewResource(c, "BookCopy", bookCopyView, bookCopyToWire), c: c}
}

// ListPage loads one window of copies matching f.
func (s *BookCopies) ListPage(ctx context.Context, f CopyFilters, win paging.Window) (backend.Page[BookCopy], error) {
	filter, err := CopySearch.Build(f.Criteria())
	if err != nil {
		return backend.Page[BookCopy]{}, err
	}
	return s.List(ctx, window(filter, win))
}

func (s *BookCopies) PageFetcher() paging.Fetcher[BookCopy, CopyFilters] {
	return s.ListPage
}

func (s *BookCopies) SetStatus(ctx context.Context, id, status string) error {
	canon := ""
	for _, st := range CopyStatuses {
		if strings.EqualFold(st, strings.TrimSpace(status)) {
			canon = st
		}
	}
	if canon == "" {
		return fmt.Errorf("%w: copy status %q", odata.ErrInvalidValue, status)
	}
	body := map[string]string{"CopyStatus": canon}
	return s.c.Call(ctx, http.MethodPut, "BookCopy/"+url.PathEscape(id)+"/Status", body, nil)
}
