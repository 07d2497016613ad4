package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/sispromo/sispromo/internal/adapter/postgres"
	"github.com/sispromo/sispromo/internal/config"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "reset-password":
		return runAdminResetPassword(args[1:])
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "list-users":
		return runAdminListUsers(args[1:])
	case "migrate-status":
		return runAdminMigrateStatus(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: sispromo admin <command> [options]

Commands:
  reset-password   Reset a user's password (must be changed at next login)
  create-user      Create a new user
  list-users       List users, optionally by role
  migrate-status   Show the applied schema version
  help             Show this help message

Examples:
  sispromo admin reset-password --login admin
  sispromo admin create-user --username maria --email maria@example.com --first Maria --last Souza --role analyst
  sispromo admin list-users --role promoter
`)
}

type adminDeps struct {
	store *postgres.Store
	auth  *service.AuthService
	users *service.UserService
	close func()
}

func loadAdminDeps(ctx context.Context) (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	store := postgres.NewStore(pool)
	return &adminDeps{
		store: store,
		auth:  service.NewAuthService(store, &cfg.Auth),
		users: service.NewUserService(store),
		close: pool.Close,
	}, nil
}

func runAdminResetPassword(args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	login := fs.String("login", "", "username or email (required)")
	password := fs.String("password", "", "new password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *login == "" {
		return errors.New("--login is required")
	}

	newPass := *password
	if newPass == "" {
		var err error
		if newPass, err = promptNewPassword("New password: "); err != nil {
			return err
		}
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	u, err := deps.store.GetUserByLogin(ctx, *login)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if err := deps.auth.ResetPassword(ctx, u.ID, newPass); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Password reset for %s; it must be changed at next login\n", u.Username)
	return nil
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	username := fs.String("username", "", "username (required)")
	email := fs.String("email", "", "email address (required)")
	first := fs.String("first", "", "first name (required)")
	last := fs.String("last", "", "last name (required)")
	role := fs.String("role", string(user.RolePromoter), "promoter, analyst or manager")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass := *password
	if pass == "" {
		var err error
		if pass, err = promptNewPassword("Password: "); err != nil {
			return err
		}
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	u, err := deps.auth.Register(ctx, &user.CreateRequest{
		Username:  *username,
		Email:     *email,
		FirstName: *first,
		LastName:  *last,
		Password:  pass,
		Role:      user.Role(*role),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%s, role=%s)\n", u.Username, u.ID, u.Role)
	return nil
}

func runAdminListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	role := fs.String("role", "", "only list users with this role")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	users, err := deps.users.List(ctx, user.Role(*role))
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tROLE\tSTATUS\tMUST_CHANGE_PW")
	for i := range users {
		u := &users[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			u.ID, u.Username, u.FullName(), u.Email, u.Role, u.Status, u.MustChangePassword)
	}
	return w.Flush()
}

func runAdminMigrateStatus(args []string) error {
	fs := flag.NewFlagSet("migrate-status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Printf("schema version: %d\n", v)
	return nil
}

// promptNewPassword asks twice and requires both entries to match.
func promptNewPassword(prompt string) (string, error) {
	pass, err := promptPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pass != confirm {
		return "", errors.New("passwords do not match")
	}
	return pass, nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
