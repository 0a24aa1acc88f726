// Package books serves books, volumes, copies and cover uploads.
package books

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/api/handlers/crud"
	"github.com/5w1tchy/library-web/internal/api/handlers/forms"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/storage/s3"
)

// Covers is the object storage used for cover images.
type Covers interface {
	PresignPut(ctx context.Context, bookID, contentType string) (s3.Upload, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Handler struct {
	Books    *services.Books
	Copies   *services.BookCopies
	Covers   Covers // nil when object storage is not configured
	PageSize int
	Log      *logrus.Entry
}

// Mount registers the routes. read guards lookups, staff the writes.
func (h *Handler) Mount(mux *http.ServeMux, read, staff func(http.Handler) http.Handler) {
	(&crud.Handler[services.Book]{
		Coll: h.Books, Search: services.BookSearch, Check: forms.Book,
		PageSize: h.PageSize, Decorate: h.coverURL,
	}).Mount(mux, "/books", read, staff)
	mux.Handle("GET /books/{id}/volumes", read(http.HandlerFunc(h.Volumes)))

	(&crud.Handler[services.Volume]{
		Coll: h.Books.Volumes, Check: forms.Volume, PageSize: h.PageSize,
	}).Mount(mux, "/volumes", read, staff)

	(&crud.Handler[services.BookCopy]{
		Coll: h.Copies, Search: services.CopySearch, Check: forms.Copy, PageSize: h.PageSize,
	}).Mount(mux, "/book-copies", read, staff)
	mux.Handle("PUT /book-copies/{id}/status", staff(http.HandlerFunc(h.SetCopyStatus)))

	mux.Handle("POST /books/{id}/cover-upload", staff(http.HandlerFunc(h.CoverUpload)))
	mux.Handle("PUT /books/{id}/cover", staff(http.HandlerFunc(h.AttachCover)))
}

func (h *Handler) coverURL(r *http.Request, b *services.Book) {
	if h.Covers == nil || b.CoverImageKey == "" {
		return
	}
	u, err := h.Covers.PresignGet(r.Context(), b.CoverImageKey)
	if err != nil {
		h.Log.WithError(err).WithField("book", b.ID).Debug("cover presign failed")
		return
	}
	b.CoverURL = u
}

// Volumes serves GET /books/{id}/volumes.
func (h *Handler) Volumes(w http.ResponseWriter, r *http.Request) {
	vols, err := h.Books.VolumesOf(r.Context(), r.PathValue("id"))
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	if vols == nil {
		vols = []services.Volume{}
	}
	httpx.OK(w, vols)
}

// SetCopyStatus serves PUT /book-copies/{id}/status.
func (h *Handler) SetCopyStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	id := r.PathValue("id")
	if err := h.Copies.SetStatus(r.Context(), id, in.Status); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	h.Log.WithFields(logrus.Fields{"copy": id, "status": in.Status}).Info("copy status changed")
	httpx.OKNoData(w)
}

// CoverUpload serves POST /books/{id}/cover-upload: a presigned PUT URL the
// browser uploads the image to directly.
func (h *Handler) CoverUpload(w http.ResponseWriter, r *http.Request) {
	if h.Covers == nil {
		apperr.WriteStatus(w, r, http.StatusNotImplemented, "Cover uploads disabled", "Object storage is not configured.")
		return
	}
	var in struct {
		ContentType string `json:"contentType"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	up, err := h.Covers.PresignPut(r.Context(), r.PathValue("id"), in.ContentType)
	if errors.Is(err, s3.ErrContentType) {
		apperr.WriteStatus(w, r, http.StatusUnsupportedMediaType, "Unsupported image type", "Upload a JPEG, PNG or WebP image.")
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("cover presign failed")
		apperr.WriteStatus(w, r, http.StatusBadGateway, "Storage unavailable", "Could not prepare the upload. Please try again.")
		return
	}
	httpx.OK(w, up)
}

// AttachCover serves PUT /books/{id}/cover once the browser finished the
// upload. A cover the backend refuses is removed from storage.
func (h *Handler) AttachCover(w http.ResponseWriter, r *http.Request) {
	if h.Covers == nil {
		apperr.WriteStatus(w, r, http.StatusNotImplemented, "Cover uploads disabled", "Object storage is not configured.")
		return
	}
	var in struct {
		Key string `json:"key"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	id := r.PathValue("id")
	if in.Key == "" || !validCoverKey(id, in.Key) {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid cover key", "")
		return
	}
	if err := h.Books.SetCover(r.Context(), id, in.Key); err != nil {
		if derr := h.Covers.Delete(context.WithoutCancel(r.Context()), in.Key); derr != nil {
			h.Log.WithError(derr).WithField("key", in.Key).Warn("orphaned cover not removed")
		}
		mw.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]string{"coverImageKey": in.Key})
}

func validCoverKey(bookID, key string) bool {
	prefix := "covers/" + bookID + "/"
	return len(key) > len(prefix) && key[:len(prefix)] == prefix
}
