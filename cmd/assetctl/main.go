package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/erazemk/assetverse/internal/auth"
	"github.com/erazemk/assetverse/internal/config"
	"github.com/erazemk/assetverse/internal/db"
	"github.com/erazemk/assetverse/internal/store"
)

const usage = `Usage: assetctl <command> [flags]

Commands:
  migrate up        apply pending schema migrations
  migrate version   print the applied schema version
  prune-tokens      delete expired token revocations
  token             mint a bearer token for an account email

Common flags:
  -config <path>    YAML config file (default: $ASSETVERSE_CONFIG)
  -db <path>        SQLite database path (overrides database.path)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = cmdMigrate(os.Args[2:])
	case "prune-tokens":
		err = cmdPruneTokens(os.Args[2:])
	case "token":
		err = cmdToken(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every subcommand shares.
type commonFlags struct {
	configPath string
	dbPath     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("ASSETVERSE_CONFIG"), "path to YAML config file")
	fs.StringVar(&c.dbPath, "db", "", "path to SQLite database file")
}

// open loads the configuration and opens the database it names.
func (c *commonFlags) open() (*config.Config, *sql.DB, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.dbPath != "" {
		cfg.Database.Path = c.dbPath
	}

	database, err := db.Open(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, database, nil
}

func cmdMigrate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("migrate needs a subcommand: up or version")
	}
	action := args[0]

	fs := flag.NewFlagSet("migrate "+action, flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	fs.Parse(args[1:])

	cfg, database, err := common.open()
	if err != nil {
		return err
	}
	defer database.Close()

	switch action {
	case "up":
		if err := db.Migrate(database); err != nil {
			return err
		}
		fallthrough
	case "version":
		version, dirty, err := db.Version(database)
		if err != nil {
			return err
		}
		fmt.Printf("Database: %s\n", cfg.Database.Path)
		fmt.Printf("Schema version: %d", version)
		if dirty {
			fmt.Print(" (dirty)")
		}
		fmt.Println()
		return nil
	default:
		return fmt.Errorf("unknown migrate subcommand: %s", action)
	}
}

func cmdPruneTokens(args []string) error {
	fs := flag.NewFlagSet("prune-tokens", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	fs.Parse(args)

	_, database, err := common.open()
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := store.PruneRevokedTokens(context.Background(), database)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d revoked tokens.\n", n)
	return nil
}

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	email := fs.String("email", "", "account email the token is issued to")
	ttl := fs.Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")
	fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("-email is required")
	}

	cfg, database, err := common.open()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}

	ctx := context.Background()
	account, err := store.GetAccountByEmail(ctx, database, *email)
	if err != nil {
		return fmt.Errorf("looking up account %s: %w", *email, err)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return err
		}
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.GenerateToken(secret, account.Email, lifetime)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "Expires: %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
	return nil
}
