package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/app"
	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/propertyhub/internal/repository"
	"github.com/aryan0dhankhar/propertyhub/internal/security/auth"
	"github.com/aryan0dhankhar/propertyhub/internal/service"
	"github.com/aryan0dhankhar/propertyhub/pkg/config"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

// systemActor is the identity recorded in audit entries for changes made
// through this tool.
var systemActor = domain.Actor{ID: "propertyctl", Role: domain.RoleAdmin}

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "migrate":
		err = handleMigrate(ctx, args)
	case "user":
		err = handleUser(ctx, args)
	case "auth":
		err = handleAuth(ctx, args)
	case "db":
		err = handleDB(ctx, args)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// environment is what a database command runs with. pool is nil when the
// session runner does not come from a real connection pool.
type environment struct {
	log    *slog.Logger
	pool   *database.ConnectionPool
	db     database.Runner
	repos  repository.Manager
	hasher *auth.PasswordHasher
}

func (e *environment) Close() {
	if e.pool != nil {
		_ = e.pool.Close()
	}
}

func (e *environment) users() *service.UserService {
	return service.NewUserService(e.db, e.repos, e.hasher, nil, nil, nil, e.log)
}

// openEnvironment is swapped out in tests to run commands against an
// in-memory store.
var openEnvironment = open

func open(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Logs go to stderr so command output stays clean on stdout.
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.Environment).With(slog.String("component", "propertyctl"))

	pool, err := app.OpenPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &environment{
		log:    log,
		pool:   pool,
		db:     pool,
		repos:  repository.NewPostgresManager(log),
		hasher: auth.NewPasswordHasher(cfg.Auth.BcryptCost),
	}, nil
}

// Migration commands

func handleMigrate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: propertyctl migrate <up|status|down>")
		return errUsage
	}

	env, err := open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	db := env.pool.GetDB()

	switch args[0] {
	case "up":
		if err := database.Migrate(ctx, db, env.log); err != nil {
			return err
		}
		fmt.Println("✓ Migrations applied")
	case "status":
		version, err := database.MigrationStatus(ctx, db, env.log)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d\n", version)
	case "down":
		if err := database.MigrateDown(ctx, db, env.log); err != nil {
			return err
		}
		fmt.Println("✓ Rolled back one migration")
	default:
		fmt.Printf("Unknown migrate command: %s\n", args[0])
		return errUsage
	}
	return nil
}

// User commands

func handleUser(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: propertyctl user <show|set-password|set-status|verify-email|create> [options]")
		return errUsage
	}

	switch args[0] {
	case "show":
		return showUser(ctx, args[1:])
	case "set-password":
		return setPassword(ctx, args[1:])
	case "set-status":
		return setStatus(ctx, args[1:])
	case "verify-email":
		return verifyEmail(ctx, args[1:])
	case "create":
		return createUser(ctx, args[1:])
	default:
		fmt.Printf("Unknown user command: %s\n", args[0])
		return errUsage
	}
}

func showUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user show", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	fs.Parse(args)

	if *email == "" {
		fmt.Println("Error: -email is required")
		fs.PrintDefaults()
		return errUsage
	}

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := env.users().GetByEmail(ctx, systemActor, *email)
	if err != nil {
		return err
	}
	printUser(os.Stdout, user)
	return nil
}

func setPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user set-password", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	fs.Parse(args)

	if *email == "" {
		fmt.Println("Error: -email is required")
		fs.PrintDefaults()
		return errUsage
	}

	password, err := resolvePassword(os.Getenv, os.Stderr)
	if err != nil {
		return err
	}

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	users := env.users()
	user, err := users.GetByEmail(ctx, systemActor, *email)
	if err != nil {
		return err
	}
	if err := users.ResetPassword(ctx, systemActor, user.ID, password); err != nil {
		return err
	}
	fmt.Printf("✓ Password updated for %s\n", user.Email)
	return nil
}

func setStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user set-status", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	status := fs.String("status", "", "new status (active, pending, suspended)")
	fs.Parse(args)

	if *email == "" || *status == "" {
		fmt.Println("Error: -email and -status are required")
		fs.PrintDefaults()
		return errUsage
	}

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	users := env.users()
	user, err := users.GetByEmail(ctx, systemActor, *email)
	if err != nil {
		return err
	}
	user, err = users.SetStatus(ctx, systemActor, user.ID, domain.UserStatus(*status))
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s is now %s\n", user.Email, user.Status)
	fmt.Printf("  A running server picks this up within %s; tokens already issued stay valid until then.\n",
		service.PrincipalCacheTTL)
	return nil
}

func verifyEmail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user verify-email", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	fs.Parse(args)

	if *email == "" {
		fmt.Println("Error: -email is required")
		fs.PrintDefaults()
		return errUsage
	}

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	users := env.users()
	user, err := users.GetByEmail(ctx, systemActor, *email)
	if err != nil {
		return err
	}
	if _, err := users.VerifyEmail(ctx, systemActor, user.ID); err != nil {
		return err
	}
	fmt.Printf("✓ Email verified for %s\n", user.Email)
	return nil
}

func createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user create", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	role := fs.String("role", string(domain.RoleTenant), "role (tenant, landlord, property_manager, admin)")
	status := fs.String("status", string(domain.StatusActive), "initial status")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	verified := fs.Bool("verified", false, "mark the email as verified")
	fs.Parse(args)

	if *email == "" {
		fmt.Println("Error: -email is required")
		fs.PrintDefaults()
		return errUsage
	}

	password, err := resolvePassword(os.Getenv, os.Stderr)
	if err != nil {
		return err
	}

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := env.users().Create(ctx, systemActor, service.CreateUserInput{
		Email:         *email,
		Password:      password,
		Role:          domain.Role(*role),
		Status:        domain.UserStatus(*status),
		FirstName:     *firstName,
		LastName:      *lastName,
		EmailVerified: *verified,
	})
	if err != nil {
		return err
	}
	fmt.Println("✓ User created")
	printUser(os.Stdout, user)
	return nil
}

// Auth commands

func handleAuth(ctx context.Context, args []string) error {
	if len(args) < 1 || args[0] != "login" {
		fmt.Println("Usage: propertyctl auth login -email <email> [-api <url>]")
		return errUsage
	}

	fs := flag.NewFlagSet("auth login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	api := fs.String("api", apiURL(os.Getenv), "API base URL")
	fs.Parse(args[1:])

	if *email == "" {
		fmt.Println("Error: -email is required")
		fs.PrintDefaults()
		return errUsage
	}

	password, err := resolvePassword(os.Getenv, os.Stderr)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	result, err := probeLogin(ctx, client, *api, *email, password)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Logged in as %s (%s), token expires in %ds\n", result.User.Email, result.User.Role, result.ExpiresIn)
	return nil
}

// Database commands

func handleDB(ctx context.Context, args []string) error {
	if len(args) < 1 || args[0] != "ping" {
		fmt.Println("Usage: propertyctl db ping")
		return errUsage
	}

	env, err := open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	start := time.Now()
	if err := env.pool.Health(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	fmt.Printf("✓ Database reachable (%s)\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// Helper functions

func printUser(w io.Writer, u *domain.User) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tSTATUS\tVERIFIED\tCREATED")
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
		u.ID, u.Email, u.Role, u.Status, u.EmailVerified, u.CreatedAt.Format(time.RFC3339))
	tw.Flush()
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `propertyctl - PropertyHub operations tool

Usage:
  propertyctl <command> [options]

Commands:
  migrate  Schema migrations (up, status, down)
  user     Account maintenance (show, set-password, set-status, verify-email, create)
           set-status writes the database directly; a running server notices
           the change within its principal cache TTL (30s), so a suspended
           account's existing tokens keep working until then
  auth     Probe a running API (login)
  db       Database connectivity (ping)
  help     Show this help message

Environment Variables:
  DATABASE_URL, SECRET_KEY   Same configuration as the server (.env is read)
  PROPERTYCTL_PASSWORD       Password for set-password, create and auth login;
                             prompted without echo when unset
  PROPERTYHUB_API            API base URL (default: http://localhost:8000/api/v1)

Examples:
  propertyctl migrate up
  propertyctl user create -email admin@example.com -role admin -verified
  propertyctl user set-status -email tenant@example.com -status suspended
  propertyctl auth login -email admin@example.com
  propertyctl db ping
`)
}
