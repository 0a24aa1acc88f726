// Command libctl talks to the library backend from a terminal. The session is
// kept in a file under the user's config directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/config"
	"github.com/5w1tchy/library-web/internal/logging"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/session"
)

// app is what every subcommand needs once flags are parsed.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	provider *session.Provider
	store    *session.FileStore
	svc      struct {
		auth         *services.Auth
		copies       *services.BookCopies
		reservations *services.Reservations
	}
}

func newRootCmd() *cobra.Command {
	var (
		apiURL      string
		sessionFile string
		verbose     bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Library management from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if apiURL != "" {
				os.Setenv("API_URL", apiURL)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			log, err := logging.NewWithOutput(cmd.ErrOrStderr(), level, "text")
			if err != nil {
				return err
			}
			if sessionFile == "" {
				if sessionFile, err = session.DefaultFilePath(); err != nil {
					return err
				}
			}
			return a.init(cfg, log, sessionFile)
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api", "", "backend base URL (overrides API_URL)")
	root.PersistentFlags().StringVar(&sessionFile, "session-file", "", "where the session is stored")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log backend calls")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newCopiesCmd(a),
		newReservationsCmd(a),
	)
	return root
}

func (a *app) init(cfg config.Config, log *logrus.Logger, sessionFile string) error {
	client, err := backend.New(backend.Config{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.RequestTimeout,
		Token:     session.TokenFromContext,
		OnRelogin: session.ReloginFromContext,
		Logger:    log.WithField("component", "backend"),
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.svc.auth = services.NewAuth(client)
	a.svc.copies = services.NewBookCopies(client)
	a.svc.reservations = services.NewReservations(client)
	a.store = session.NewFileStore(sessionFile)
	a.provider = session.NewProvider(a.store, a.svc.auth, session.Options{
		DefaultTTL:    cfg.SessionTTL,
		RedirectDelay: cfg.RedirectDelay,
		Notify: func(_ context.Context, n session.Notice) {
			fmt.Fprintln(os.Stderr, n.Message)
		},
		Logger: log.WithField("component", "session"),
	})
	return nil
}

// ctx binds the provider so backend calls carry the stored token.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	return session.WithProvider(cmd.Context(), a.provider)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "libctl:", backend.Message(err))
		os.Exit(1)
	}
}
