package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/services"
)

func newReservationsCmd(a *app) *cobra.Command {
	var status, search string
	cmd := &cobra.Command{
		Use:     "reservations",
		Aliases: []string{"res"},
		Short:   "List your reservations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := paging.NewController(a.svc.reservations.ListFetcher(),
				odata.Criteria{"status": status, "search": search},
				paging.Options{PageSize: a.cfg.PageSize, Logger: a.log.WithField("component", "reservations")})
			st, err := walk(a.ctx(cmd), c)
			if err != nil {
				return err
			}
			if len(st.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reservations.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBOOK\tSTATUS\tQUEUE\tRESERVED")
			for _, r := range st.Items {
				queue := "-"
				if r.QueuePosition > 0 {
					queue = strconv.Itoa(r.QueuePosition)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.BookTitle, r.Status, queue,
					r.ReservedAt.Local().Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVarP(&search, "search", "s", "", "title contains")
	cmd.AddCommand(newReserveCmd(a), newCancelCmd(a))
	return cmd
}

func newReserveCmd(a *app) *cobra.Command {
	var volume int64
	cmd := &cobra.Command{
		Use:   "add BOOK_ID",
		Short: "Reserve a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || book <= 0 {
				return fmt.Errorf("invalid book id %q", args[0])
			}
			var r services.Reservation
			if r, err = a.svc.reservations.Create(a.ctx(cmd), book, volume); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reservation %d created (%s).\n", r.ID, r.Status)
			return nil
		},
	}
	cmd.Flags().Int64Var(&volume, "volume", 0, "volume id for multi-volume books")
	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.reservations.Cancel(a.ctx(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reservation cancelled.")
			return nil
		},
	}
}
