// Package forms normalizes and validates submitted admin forms.
package forms

import (
	"strconv"

	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/validate"
)

func Attribute(a *services.Attribute) error {
	var v validate.Errors
	a.Name = v.Bounded("name", a.Name, 1, 100)
	return v.Err()
}

func Publisher(p *services.Publisher) error {
	var v validate.Errors
	p.Name = v.Bounded("name", p.Name, 1, 150)
	p.Address = v.Bounded("address", p.Address, 0, 250)
	return v.Err()
}

func Author(a *services.Author) error {
	var v validate.Errors
	a.FullName = v.Bounded("fullName", a.FullName, 1, 150)
	a.Biography = v.Bounded("biography", a.Biography, 0, 2000)
	return v.Err()
}

func Book(b *services.Book) error {
	var v validate.Errors
	b.Title = v.Bounded("title", b.Title, 1, 250)
	b.ISBN = v.ISBN("isbn", b.ISBN)
	if b.PublicationYear != 0 {
		b.PublicationYear = v.Year("publicationYear", strconv.Itoa(b.PublicationYear))
	}
	if b.Category == nil || b.Category.ID <= 0 {
		v.Add("category", "required", "Choose a category.")
	}
	if len(b.Authors) == 0 {
		v.Add("authors", "required", "Add at least one author.")
	}
	return v.Err()
}

func Volume(vol *services.Volume) error {
	var v validate.Errors
	if vol.BookID <= 0 {
		v.Add("bookId", "required", "Choose a book.")
	}
	if vol.Number < 1 {
		v.Add("number", "range", "Volume number must be 1 or more.")
	}
	vol.Title = v.Bounded("title", vol.Title, 0, 250)
	return v.Err()
}

func Copy(c *services.BookCopy) error {
	var v validate.Errors
	if c.VolumeID <= 0 {
		v.Add("volumeId", "required", "Choose a volume.")
	}
	if c.Status == "" {
		c.Status = services.CopyStatuses[0]
	}
	c.Status = v.OneOf("status", c.Status, services.CopyStatuses)
	c.Barcode = v.Bounded("barcode", c.Barcode, 0, 64)
	c.Location.Floor = v.Bounded("location.floor", c.Location.Floor, 0, 20)
	c.Location.Shelf = v.Bounded("location.shelf", c.Location.Shelf, 0, 20)
	return v.Err()
}

func User(u *services.User) error {
	var v validate.Errors
	u.Name = v.Bounded("name", u.Name, 1, 100)
	u.Email = v.Email("email", u.Email)
	u.Role = v.OneOf("role", u.Role, services.Roles)
	return v.Err()
}
