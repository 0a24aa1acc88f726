package services

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
)

var ReservationStatuses = []string{"Pending", "Ready", "Fulfilled", "Cancelled", "Expired"}

type Reservation struct {
	ID            int64      `json:"id"`
	BookID        int64      `json:"bookId"`
	BookTitle     string     `json:"bookTitle"`
	VolumeID      int64      `json:"volumeId,omitempty"`
	CopyID        int64      `json:"copyId,omitempty"`
	Status        string     `json:"status"`
	QueuePosition int        `json:"queuePosition,omitempty"`
	ReservedAt    time.Time  `json:"reservedAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

type reservationWire struct {
	ID            int64    `json:"Id"`
	BookID        int64    `json:"BookId"`
	BookTitle     string   `json:"BookTitle,omitempty"`
	VolumeID      int64    `json:"VolumeId,omitempty"`
	BookCopyID    int64    `json:"BookCopyId,omitempty"`
	Status        string   `json:"Status"`
	QueuePosition int      `json:"QueuePosition,omitempty"`
	ReservedAt    wireTime `json:"ReservationDate"`
	ExpiresAt     wireTime `json:"ExpirationDate,omitempty"`
}

func reservationView(w reservationWire) Reservation {
	return Reservation{
		ID:            w.ID,
		BookID:        w.BookID,
		BookTitle:     w.BookTitle,
		VolumeID:      w.VolumeID,
		CopyID:        w.BookCopyID,
		Status:        w.Status,
		QueuePosition: w.QueuePosition,
		ReservedAt:    w.ReservedAt.Time,
		ExpiresAt:     w.ExpiresAt.ptr(),
	}
}

type reservationRequest struct {
	BookID   int64 `json:"BookId"`
	VolumeID int64 `json:"VolumeId,omitempty"`
}

var ReservationSearch = odata.NewBuilder(
	odata.Field{Key: "status", Path: "Status", Kind: odata.Equals, Allowed: ReservationStatuses},
	odata.Field{Key: "search", Path: "BookTitle", Kind: odata.Contains},
)

// Reservations are always scoped to the signed-in user.
type Reservations struct {
	c *backend.Client
}

func NewReservations(c *backend.Client) *Reservations { return &Reservations{c: c} }

func (r *Reservations) Mine(ctx context.Context, q odata.Query) (backend.Page[Reservation], error) {
	return listAt(ctx, r.c, q.Endpoint("Reservation/my"), reservationView)
}

func (r *Reservations) Create(ctx context.Context, bookID, volumeID int64) (Reservation, error) {
	var w reservationWire
	err := r.c.Call(ctx, http.MethodPost, "Reservation", reservationRequest{BookID: bookID, VolumeID: volumeID}, &w)
	if err != nil {
		return Reservation{}, err
	}
	return reservationView(w), nil
}

func (r *Reservations) Cancel(ctx context.Context, id string) error {
	return r.c.Call(ctx, http.MethodDelete, "Reservation/"+url.PathEscape(id), nil, nil)
}

func (r *Reservations) ListFetcher() paging.Fetcher[Reservation, odata.Criteria] {
	return func(ctx context.Context, c odata.Criteria, win paging.Window) (backend.Page[Reservation], error) {
		filter, err := ReservationSearch.Build(c)
		if err != nil {
			return backend.Page[Reservation]{}, err
		}
		q := window(filter, win)
		q.OrderBy = "ReservationDate desc"
		return r.Mine(ctx, q)
	}
}
