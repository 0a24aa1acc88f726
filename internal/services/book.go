package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
)

type Book struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	ISBN            string      `json:"isbn,omitempty"`
	PublicationYear int         `json:"publicationYear,omitempty"`
	Category        *Attribute  `json:"category,omitempty"`
	Publisher       *Attribute  `json:"publisher,omitempty"`
	Edition         *Attribute  `json:"edition,omitempty"`
	CoverType       *Attribute  `json:"coverType,omitempty"`
	PaperQuality    *Attribute  `json:"paperQuality,omitempty"`
	Authors         []Attribute `json:"authors"`
	CoverImageKey   string      `json:"coverImageKey,omitempty"`
	CoverURL        string      `json:"coverUrl,omitempty"`
}

type authorRefWire struct {
	ID       int64  `json:"Id"`
	FullName string `json:"FullName"`
}

type bookWire struct {
	ID               int64           `json:"Id"`
	Title            string          `json:"Title"`
	Isbn             string          `json:"Isbn,omitempty"`
	PublicationYear  int             `json:"PublicationYear,omitempty"`
	CategoryID       int64           `json:"CategoryId,omitempty"`
	CategoryName     string          `json:"CategoryName,omitempty"`
	PublisherID      int64           `json:"PublisherId,omitempty"`
	PublisherName    string          `json:"PublisherName,omitempty"`
	EditionID        int64           `json:"EditionId,omitempty"`
	EditionName      string          `json:"EditionName,omitempty"`
	CoverTypeID      int64           `json:"CoverTypeId,omitempty"`
	CoverTypeName    string          `json:"CoverTypeName,omitempty"`
	PaperQualityID   int64           `json:"PaperQualityId,omitempty"`
	PaperQualityName string          `json:"PaperQualityName,omitempty"`
	AuthorIDs        []int64         `json:"AuthorIds,omitempty"`
	Authors          []authorRefWire `json:"Authors,omitempty"`
	CoverImageKey    string          `json:"CoverImageKey,omitempty"`
}

func ref(id int64, name string) *Attribute {
	if id == 0 && name == "" {
		return nil
	}
	return &Attribute{ID: id, Name: name}
}

func unref(a *Attribute) (int64, string) {
	if a == nil {
		return 0, ""
	}
	return a.ID, a.Name
}

func bookView(w bookWire) Book {
	b := Book{
		ID:              w.ID,
		Title:           w.Title,
		ISBN:            w.Isbn,
		PublicationYear: w.PublicationYear,
		Category:        ref(w.CategoryID, w.CategoryName),
		Publisher:       ref(w.PublisherID, w.PublisherName),
		Edition:         ref(w.EditionID, w.EditionName),
		CoverType:       ref(w.CoverTypeID, w.CoverTypeName),
		PaperQuality:    ref(w.PaperQualityID, w.PaperQualityName),
		Authors:         make([]Attribute, 0, len(w.Authors)),
		CoverImageKey:   w.CoverImageKey,
	}
	for _, a := range w.Authors {
		b.Authors = append(b.Authors, Attribute{ID: a.ID, Name: a.FullName})
	}
	if len(w.Authors) == 0 {
		for _, id := range w.AuthorIDs {
			b.Authors = append(b.Authors, Attribute{ID: id})
		}
	}
	return b
}

func bookToWire(b Book) bookWire {
	w := bookWire{
		ID:              b.ID,
		Title:           b.Title,
		Isbn:            b.ISBN,
		PublicationYear: b.PublicationYear,
		CoverImageKey:   b.CoverImageKey,
	}
	w.CategoryID, w.CategoryName = unref(b.Category)
	w.PublisherID, w.PublisherName = unref(b.Publisher)
	w.EditionID, w.EditionName = unref(b.Edition)
	w.CoverTypeID, w.CoverTypeName = unref(b.CoverType)
	w.PaperQualityID, w.PaperQualityName = unref(b.PaperQuality)
	for _, a := range b.Authors {
		w.AuthorIDs = append(w.AuthorIDs, a.ID)
	}
	return w
}

type Volume struct {
	ID     int64  `json:"id"`
	BookID int64  `json:"bookId"`
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

type volumeWire struct {
	ID           int64  `json:"Id"`
	BookID       int64  `json:"BookId"`
	VolumeNumber int    `json:"VolumeNumber"`
	Title        string `json:"Title,omitempty"`
}

func volumeView(w volumeWire) Volume {
	return Volume{ID: w.ID, BookID: w.BookID, Number: w.VolumeNumber, Title: w.Title}
}

func volumeToWire(v Volume) volumeWire {
	return volumeWire{ID: v.ID, BookID: v.BookID, VolumeNumber: v.Number, Title: v.Title}
}

// BookSearch is the criteria set of the books list.
var BookSearch = odata.NewBuilder(
	odata.Field{Key: "search", Path: "Title", Kind: odata.Contains},
	odata.Field{Key: "category", Path: "CategoryName", Kind: odata.Contains},
	odata.Field{Key: "year", Path: "PublicationYear", Kind: odata.Number},
)

type Books struct {
	Collection[Book]
	Volumes Collection[Volume]
	c       *backend.Client
}

func NewBooks(c *backend.Client) *Books {
	return &Books{
		Collection: NewResource(c, "Book", bookView, bookToWire),
		Volumes:    NewResource(c, "Volume", volumeView, volumeToWire),
		c:          c,
	}
}

// VolumesOf lists the volumes of one book.
func (b *Books) VolumesOf(ctx context.Context, bookID string) ([]Volume, error) {
	p, err := listAt(ctx, b.c, "Book/"+url.PathEscape(bookID)+"/Volumes", volumeView)
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

// SetCover records an uploaded cover object key on a book.
func (b *Books) SetCover(ctx context.Context, bookID, key string) error {
	body := map[string]string{"CoverImageKey": key}
	return b.c.Call(ctx, http.MethodPut, "Book/"+url.PathEscape(bookID)+"/Cover", body, nil)
}

func (b *Books) ListFetcher() paging.Fetcher[Book, odata.Criteria] {
	return b.Fetcher(BookSearch)
}
