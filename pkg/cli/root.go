package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/folio/pkg/database"
)

// Env is what a subcommand runs against.
type Env struct {
	Out     io.Writer
	Logger  logrus.FieldLogger
	DB      *sql.DB
	Dialect database.Dialect
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Flags       *flag.FlagSet
	Run         func(ctx context.Context, env *Env) error
	Subcommands map[string]*Command
}

// root flags
type options struct {
	databaseURL string
	sqlitePath  string
	logLevel    string
}

// Root is the folio-admin entry point.
type Root struct {
	*Command
	out  io.Writer
	opts options
}

// NewRootCommand creates the root command writing results to out.
func NewRootCommand(out io.Writer) *Root {
	r := &Root{
		Command: &Command{
			Name:        "folio-admin",
			Description: "folio-admin - bootstrap and maintain a folio deployment",
			Subcommands: make(map[string]*Command),
			Flags:       flag.NewFlagSet("folio-admin", flag.ContinueOnError),
		},
		out: out,
	}
	r.Flags.SetOutput(out)
	r.Flags.StringVar(&r.opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	r.Flags.StringVar(&r.opts.sqlitePath, "sqlite", "", "Use a local SQLite database file instead of PostgreSQL")
	r.Flags.StringVar(&r.opts.logLevel, "log-level", "warn", "Log level")

	for _, cmd := range []*Command{
		newMigrateCommand(),
		newCreateTenantCommand(),
		newCreateUserCommand(),
		newGrantRoleCommand(),
		newSetTenantCommand(),
		newSeedRolesCommand(),
		newCreateTokenCommand(),
	} {
		cmd.Flags.SetOutput(out)
		r.Subcommands[cmd.Name] = cmd
	}
	return r
}

// Execute parses args (without the program name) and runs the selected
// subcommand against a freshly opened database.
func (r *Root) Execute(ctx context.Context, args []string) error {
	if err := r.Flags.Parse(args); err != nil {
		return err
	}
	rest := r.Flags.Args()
	if len(rest) == 0 || rest[0] == "help" {
		return r.usage()
	}

	sub, ok := r.Subcommands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", rest[0])
	}
	if err := sub.Flags.Parse(rest[1:]); err != nil {
		return err
	}

	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.DB.Close()
	return sub.Run(ctx, env)
}

func (r *Root) open(ctx context.Context) (*Env, error) {
	logger := setupLogger(r.opts.logLevel, r.out)

	var (
		db      *sql.DB
		dialect database.Dialect
		err     error
	)
	switch {
	case r.opts.sqlitePath != "":
		db, err = sql.Open("sqlite3", r.opts.sqlitePath)
		dialect = database.SQLite
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case r.opts.databaseURL != "":
		db, err = sql.Open("postgres", r.opts.databaseURL)
		dialect = database.Postgres
	default:
		return nil, fmt.Errorf("either -database-url (or DATABASE_URL) or -sqlite is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Env{Out: r.out, Logger: logger, DB: db, Dialect: dialect}, nil
}

func setupLogger(logLevel string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.Warnf("Unknown log level %q, using warn", logLevel)
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	return logger
}

// usage prints the command usage
func (r *Root) usage() error {
	fmt.Fprintf(r.out, "Usage: %s [flags] <command> [args]\n\n", r.Name)
	fmt.Fprintf(r.out, "Commands:\n")
	names := make([]string, 0, len(r.Subcommands))
	for name := range r.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(r.out, "  %-15s %s\n", name, r.Subcommands[name].Description)
	}
	fmt.Fprintf(r.out, "\nFlags:\n")
	r.Flags.PrintDefaults()
	return nil
}
