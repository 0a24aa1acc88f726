package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/5w1tchy/library-web/internal/session"
	"github.com/5w1tchy/library-web/internal/validate"
)

// readPassword reads a password without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func newLoginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := readPassword(cmd, "Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			var v validate.Errors
			email = v.Email("email", email)
			v.Required("password", pwd)
			if err := v.Err(); err != nil {
				return err
			}
			s, err := a.provider.Login(a.ctx(cmd), session.Credentials{Email: email, Password: pwd})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s) until %s\n",
				s.Info.User.Name, s.Info.User.Role, s.Expiry.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.provider.Logout(a.ctx(cmd))
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.provider.Current(a.ctx(cmd))
			if errors.Is(err, session.ErrNoSession) {
				return errors.New("not signed in; run libctl login")
			}
			if err != nil {
				return err
			}
			u := s.Info.User
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nrole:    %s\nexpires: %s\nstored:  %s\n",
				u.Name, u.Email, u.Role, s.Expiry.Local().Format("2006-01-02 15:04"), a.store.Path())
			return nil
		},
	}
}
