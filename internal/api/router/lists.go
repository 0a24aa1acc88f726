package router

import (
	"github.com/5w1tchy/library-web/internal/api/handlers/lists"
	"github.com/5w1tchy/library-web/internal/config"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/session"
)

// ListDefs returns the infinite-scroll lists the pages open. Lists named in
// CLIENT_SIDE_PAGING fetch everything once and slice locally.
func ListDefs(cfg config.Config, s Services) []lists.Def {
	lookup := func(name string, coll services.Collection[services.Attribute]) paging.Fetcher[services.Attribute, odata.Criteria] {
		if cfg.SlicesLocally(name) {
			return coll.SlicedFetcher(services.NameSearch)
		}
		return coll.Fetcher(services.NameSearch)
	}
	authors := s.Catalog.Authors.Fetcher(services.AuthorSearch)
	if cfg.SlicesLocally("authors") {
		authors = s.Catalog.Authors.SlicedFetcher(services.AuthorSearch)
	}

	return []lists.Def{
		lists.Define("book-copies", s.Copies.PageFetcher(), services.CopyFilters{},
			session.RoleAdmin, session.RoleLibrarian),
		lists.Define("publishers", s.Catalog.Publishers.Fetcher(services.NameSearch), odata.Criteria{},
			session.RoleAdmin, session.RoleLibrarian),
		lists.Define("authors", authors, odata.Criteria{},
			session.RoleAdmin, session.RoleLibrarian),
		lists.Define("editions", lookup("editions", s.Catalog.Editions), odata.Criteria{},
			session.RoleAdmin, session.RoleLibrarian),
		lists.Define("users", s.Users.ListFetcher(), odata.Criteria{}, session.RoleAdmin),
		lists.Define("reservations", s.Reservations.ListFetcher(), odata.Criteria{}),
		lists.Define("books", s.Books.ListFetcher(), odata.Criteria{}),
	}
}
