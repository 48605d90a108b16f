package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"schooladmin/internal/auth"
	"schooladmin/internal/config"
	"schooladmin/internal/store"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate                          apply the database schema
  grant-role -email E -role R      grant role R (admin, hod, faculty, student) to the user with email E
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "grant-role":
		err = grantRole(ctx, cfg, logger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg config.App, logger *slog.Logger) error {
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func grantRole(ctx context.Context, cfg config.App, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("grant-role", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	role := fs.String("role", "", "role name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *role == "" {
		return fmt.Errorf("-email and -role are required")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := auth.NewRepository(db.Client)
	user, err := repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no user with email %s", *email)
	}
	if err := repo.GrantRole(ctx, user.ID, *role); err != nil {
		return err
	}
	logger.Info("role granted", "user_id", user.ID, "role", *role)
	return nil
}
