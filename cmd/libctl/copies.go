package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/session"
)

// walk loads every page of c. A page that adds no items ends the walk even
// when the backend still reports more.
func walk[T, F any](ctx context.Context, c *paging.Controller[T, F]) (paging.State[T, F], error) {
	if err := c.InitialLoad(ctx); err != nil {
		return c.Snapshot(), err
	}
	for {
		st := c.Snapshot()
		if !st.HasMore {
			return st, nil
		}
		before := len(st.Items)
		if err := c.LoadMore(ctx); err != nil {
			return c.Snapshot(), err
		}
		if len(c.Snapshot().Items) == before {
			return c.Snapshot(), nil
		}
	}
}

func newCopiesCmd(a *app) *cobra.Command {
	var (
		f     services.CopyFilters
		limit int
	)
	cmd := &cobra.Command{
		Use:   "copies",
		Short: "List book copies",
		Long:  "List every book copy matching the filters, walking all pages.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireStaff(a, cmd); err != nil {
				return err
			}
			size := a.cfg.PageSize
			if limit > 0 {
				size = limit
			}
			c := paging.NewController(a.svc.copies.PageFetcher(), f, paging.Options{
				PageSize: size,
				Logger:   a.log.WithField("component", "copies"),
			})
			st, err := walk(a.ctx(cmd), c)
			if err != nil {
				return err
			}
			printCopies(cmd.OutOrStdout(), st.Items)
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d copies\n", len(st.Items), st.TotalCount)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.Search, "search", "s", "", "title contains")
	fl.StringVar(&f.CopyStatus, "status", "", "copy status ("+strings.Join(services.CopyStatuses, ", ")+")")
	fl.StringVar(&f.CategoryName, "category", "", "category contains")
	fl.StringVar(&f.PublicationYear, "year", "", "publication year")
	fl.StringVar(&f.Floor, "floor", "", "floor")
	fl.StringVar(&f.Shelf, "shelf", "", "shelf")
	fl.IntVar(&limit, "page-size", 0, "rows per backend request")
	return cmd
}

func printCopies(w io.Writer, items []services.BookCopy) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBARCODE\tTITLE\tSTATUS\tLOCATION")
	for _, c := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Barcode, c.BookTitle, c.Status, c.Location)
	}
	tw.Flush()
}

func requireStaff(a *app, cmd *cobra.Command) error {
	s, err := a.provider.Current(a.ctx(cmd))
	if errors.Is(err, session.ErrNoSession) {
		return errors.New("not signed in; run libctl login")
	}
	if err != nil {
		return err
	}
	switch s.Info.User.Role {
	case session.RoleAdmin, session.RoleLibrarian:
		return nil
	}
	return fmt.Errorf("role %s cannot list copies", s.Info.User.Role)
}
