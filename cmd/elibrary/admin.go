package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/repository/sqldb"
	"github.com/sakif/elibrary/internal/service"
)

// newCreateAdminCommand seeds an administrator. The HTTP API only lets
// admins create admins, so the first one has to come from here.
func newCreateAdminCommand(a *app) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Example: "  elibrary create-admin --username root --email root@example.com\n" +
			"  (the password is prompted for when --password is omitted)",
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username (required)")
	cmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&password, "password", "", "admin password; prompted for when empty")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	cmd.RunE = a.run(func(cmd *cobra.Command) error {
		if password == "" {
			var err error
			if password, err = readPassword("Password: "); err != nil {
				return err
			}
		}
		return a.createAdmin(cmd.Context(), username, email, password)
	})
	return cmd
}

func (a *app) createAdmin(ctx context.Context, username, email, password string) error {
	db, err := sqldb.Open(ctx, a.cfg.DBDriver, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	users := service.NewUserService(db, auth.NewPasswordService(a.cfg.BcryptCost), a.logger)
	u, err := users.Add(ctx, username, email, password, true)
	if err != nil {
		return err
	}

	a.logger.Info("admin created", slog.Int64("userID", u.ID), slog.String("username", u.Username))
	return nil
}

// readPassword prompts on the terminal without echoing input.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to prompt on; pass --password")
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
