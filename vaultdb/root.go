package vaultdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/jszwec/csvutil"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gitlab.com/mediavault/vaultdb/configuration"
	"gitlab.com/mediavault/vaultdb/log"
	"gitlab.com/mediavault/vaultdb/vaultdb/datastore"
	"gitlab.com/mediavault/vaultdb/vaultdb/datastore/migrations"
	"gitlab.com/mediavault/vaultdb/vaultdb/schema"
	"gitlab.com/mediavault/vaultdb/version"

	// Register the vault schema declaration so that the generate command can
	// resolve it through the migration.target configuration parameter.
	_ "gitlab.com/mediavault/vaultdb/vaultdb/metadata"
)

func init() {
	RootCmd.AddCommand(DBCmd)
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")

	MigrateCmd.AddCommand(MigrateVersionCmd)
	MigrateStatusCmd.Flags().BoolVarP(&upToDateCheck, "up-to-date", "u", false, "check if all known migrations are applied")
	MigrateStatusCmd.Flags().BoolVarP(&skipPostDeployment, "skip-post-deployment", "s", false, "ignore post deployment migrations")
	MigrateStatusCmd.Flags().StringVarP(&format, "format", "f", "text", "which format to write output to, options: text, json, csv")
	MigrateCmd.AddCommand(MigrateStatusCmd)
	MigrateUpCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "do not commit changes to the database")
	MigrateUpCmd.Flags().VarP(nullableInt{&maxNumMigrations}, "limit", "n", "limit the number of migrations (all by default)")
	MigrateUpCmd.Flags().BoolVarP(&skipPostDeployment, "skip-post-deployment", "s", false, "do not apply post deployment migrations")
	MigrateCmd.AddCommand(MigrateUpCmd)
	MigrateDownCmd.Flags().BoolVarP(&force, "force", "f", false, "no confirmation message")
	MigrateDownCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "do not commit changes to the database")
	MigrateDownCmd.Flags().VarP(nullableInt{&maxNumMigrations}, "limit", "n", "limit the number of migrations (all by default)")
	MigrateCmd.AddCommand(MigrateDownCmd)
	DBCmd.AddCommand(MigrateCmd)

	GenerateCmd.Flags().StringVarP(&migrationName, "name", "m", "auto", "name of the generated migration")
	GenerateCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "print the planned statements without writing a file")
	DBCmd.AddCommand(GenerateCmd)
}

// Command flag vars
var (
	dryRun             bool
	force              bool
	format             string
	maxNumMigrations   *int
	migrationName      string
	showVersion        bool
	skipPostDeployment bool
	upToDateCheck      bool
)

// nullableInt implements spf13/pflag#Value as a custom nullable integer to capture spf13/cobra command flags.
// https://pkg.go.dev/github.com/spf13/pflag?tab=doc#Value
type nullableInt struct {
	ptr **int
}

func (f nullableInt) String() string {
	if *f.ptr == nil {
		return "0"
	}
	return strconv.Itoa(**f.ptr)
}

func (f nullableInt) Type() string {
	return "int"
}

func (f nullableInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f.ptr = &v
	return nil
}

// RootCmd is the main command for the 'vaultdb' binary.
var RootCmd = &cobra.Command{
	Use:   "vaultdb",
	Short: "`vaultdb`",
	Long:  "`vaultdb`",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.PrintVersion()
			return
		}
		cmd.Usage()
	},
}

// DBCmd is the root of the `database` command.
var DBCmd = &cobra.Command{
	Use:   "database",
	Short: "Manages the vault metadata database",
	Long:  "Manages the vault metadata database",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Usage()
	},
}

// MigrateCmd is the `migrate` sub-command of `database` that manages database migrations.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage migrations",
	Long:  "Manage migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Usage()
	},
}

var MigrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply up migrations",
	Long:  "Apply up migrations",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			cmd.Usage()
			os.Exit(1)
		}

		if maxNumMigrations == nil {
			var all int
			maxNumMigrations = &all
		} else if *maxNumMigrations < 1 {
			fmt.Fprintf(os.Stderr, "limit must be greater than or equal to 1")
			os.Exit(1)
		}

		db, err := dbFromConfig(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to construct database connection: %v", err)
			os.Exit(1)
		}

		m := migrations.NewMigrator(db.DB)
		if skipPostDeployment {
			migrations.SkipPostDeployment(m)
		}

		plan, err := m.UpNPlan(*maxNumMigrations)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to plan database migrations: %v", err)
			os.Exit(1)
		}
		if len(plan) > 0 {
			fmt.Println(strings.Join(plan, "\n"))
		}

		if !dryRun {
			start := time.Now()
			n, err := m.UpN(*maxNumMigrations)
			if err != nil {
				reportError(err)
				fmt.Fprintf(os.Stderr, "failed to run database migrations: %v", err)
				os.Exit(1)
			}
			fmt.Printf("OK: applied %d migrations in %.3fs\n", n, time.Since(start).Seconds())
		}
	},
}

var MigrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Apply down migrations",
	Long:  "Apply down migrations",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			cmd.Usage()
			os.Exit(1)
		}

		if maxNumMigrations == nil {
			var all int
			maxNumMigrations = &all
		} else if *maxNumMigrations < 1 {
			fmt.Fprintf(os.Stderr, "limit must be greater than or equal to 1")
			os.Exit(1)
		}

		db, err := dbFromConfig(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to construct database connection: %v", err)
			os.Exit(1)
		}

		m := migrations.NewMigrator(db.DB)
		plan, err := m.DownNPlan(*maxNumMigrations)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to plan database migrations: %v", err)
			os.Exit(1)
		}
		if len(plan) > 0 {
			fmt.Println(strings.Join(plan, "\n"))
		}

		if !dryRun && len(plan) > 0 {
			if !force {
				var response string
				fmt.Print("Preparing to apply the above down migrations. Are you sure? [y/N] ")
				_, err := fmt.Scanln(&response)
				if err != nil && errors.Is(err, io.EOF) {
					fmt.Fprintf(os.Stderr, "failed to scan user input: %v", err)
					os.Exit(1)
				}
				if !regexp.MustCompile(`(?i)^y(es)?$`).MatchString(response) {
					return
				}
			}

			start := time.Now()
			n, err := m.DownN(*maxNumMigrations)
			if err != nil {
				reportError(err)
				fmt.Fprintf(os.Stderr, "failed to run database migrations: %v", err)
				os.Exit(1)
			}
			fmt.Printf("OK: applied %d migrations in %.3fs\n", n, time.Since(start).Seconds())
		}
	},
}

// MigrateVersionCmd is the `version` sub-command of `database migrate` that shows the current migration version.
var MigrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Long:  "Show current migration version",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			cmd.Usage()
			os.Exit(1)
		}

		db, err := dbFromConfig(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to construct database connection: %v", err)
			os.Exit(1)
		}

		m := migrations.NewMigrator(db.DB)
		v, err := m.Version()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to detect database version: %v", err)
			os.Exit(1)
		}
		if v == "" {
			v = "Unknown"
		}

		fmt.Printf("%s\n", v)
	},
}

// migrationStatus is a single row of the `database migrate status` output.
type migrationStatus struct {
	Migration      string `json:"migration" csv:"migration"`
	Applied        string `json:"applied_at,omitempty" csv:"applied_at"`
	Unknown        bool   `json:"unknown" csv:"unknown"`
	PostDeployment bool   `json:"post_deployment" csv:"post_deployment"`
}

// MigrateStatusCmd is the `status` sub-command of `database migrate` that shows the migrations status.
var MigrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  "Show migration status",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			cmd.Usage()
			os.Exit(1)
		}

		db, err := dbFromConfig(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to construct database connection: %v", err)
			os.Exit(1)
		}

		m := migrations.NewMigrator(db.DB)
		statuses, err := m.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to detect database status: %v", err)
			os.Exit(1)
		}

		if upToDateCheck {
			upToDate := true
			for _, s := range statuses {
				if s.AppliedAt == nil {
					if !s.PostDeployment || !skipPostDeployment {
						upToDate = false
						break
					}
				}
			}
			fmt.Println(upToDate)
			return
		}

		// Output rows sorted by migration ID
		var ids []string
		for id := range statuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var rows []migrationStatus
		for _, id := range ids {
			if statuses[id].PostDeployment && skipPostDeployment {
				continue
			}

			var appliedAt string
			if statuses[id].AppliedAt != nil {
				appliedAt = statuses[id].AppliedAt.String()
			}

			rows = append(rows, migrationStatus{
				Migration:      id,
				Applied:        appliedAt,
				Unknown:        statuses[id].Unknown,
				PostDeployment: statuses[id].PostDeployment,
			})
		}

		switch format {
		case "csv":
			b, err := csvutil.Marshal(rows)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal status: %v", err)
				os.Exit(1)
			}

			fmt.Fprintf(os.Stdout, "%s", b)
		case "json":
			b, err := json.Marshal(rows)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal status: %v", err)
				os.Exit(1)
			}

			fmt.Fprintf(os.Stdout, "%s", b)
		case "text":
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Migration", "Applied"})
			table.SetColWidth(80)

			for _, row := range rows {
				name := row.Migration
				if row.Unknown {
					name += " (unknown)"
				}
				if row.PostDeployment {
					name += " (post deployment)"
				}

				table.Append([]string{name, row.Applied})
			}

			table.Render()
		default:
			fmt.Fprintf(os.Stderr, "output option must be one of text, json, csv")
			os.Exit(1)
		}
	},
}

// GenerateCmd is the `generate` sub-command of `database` that diffs the
// declared schema metadata against the live database and writes a new
// migration source file for the difference.
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a migration from the declared schema",
	Long: "Generate a migration from the declared schema.\n" +
		"The live database schema is compared against the metadata object named\n" +
		"by the migration.target configuration parameter, and the difference is\n" +
		"written as a new migration source file.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			cmd.Usage()
			os.Exit(1)
		}

		declared, err := schema.Lookup(config.Migration.Target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve schema metadata: %v", err)
			os.Exit(1)
		}
		if err := declared.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "declared schema %q is invalid: %v", config.Migration.Target, err)
			os.Exit(1)
		}

		db, err := dbFromConfig(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to construct database connection: %v", err)
			os.Exit(1)
		}

		m := migrations.NewMigrator(db.DB)
		pending, err := m.HasPending()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to check database migrations status: %v", err)
			os.Exit(1)
		}
		if pending {
			fmt.Fprintf(os.Stderr, "there are pending database migrations, use the 'vaultdb database migrate' CLI "+
				"command to check and apply them before generating new ones")
			os.Exit(1)
		}

		live, err := schema.NewInspector(db).Inspect(context.Background())
		if err != nil {
			reportError(err)
			fmt.Fprintf(os.Stderr, "failed to inspect database schema: %v", err)
			os.Exit(1)
		}

		plan := schema.Diff(declared, live)
		for _, w := range plan.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}

		if plan.Empty() {
			fmt.Println("OK: database already matches the declared schema")
			return
		}

		if dryRun {
			fmt.Println(strings.Join(plan.Statements, ";\n"))
			return
		}

		dir := config.Migration.Path
		if dir == "" {
			dir = defaultMigrationsDir
		}

		path, err := schema.NewGenerator(dir).Generate(migrationName, plan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate migration: %v", err)
			os.Exit(1)
		}

		fmt.Printf("OK: wrote %s\n", path)
	},
}

// defaultMigrationsDir is where generated migrations land when
// migration.path is not configured.
const defaultMigrationsDir = "vaultdb/datastore/migrations"

// resolveConfiguration loads a .env file when present and parses the
// configuration from the file given as the first positional argument, or
// from $VAULTDB_CONFIGURATION_PATH.
func resolveConfiguration(args []string) (*configuration.Configuration, error) {
	var configurationPath string

	if len(args) > 0 {
		configurationPath = args[0]
	} else if os.Getenv("VAULTDB_CONFIGURATION_PATH") != "" {
		configurationPath = os.Getenv("VAULTDB_CONFIGURATION_PATH")
	}

	if configurationPath == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}

	// Optional, brings environment overrides from a local .env file.
	_ = godotenv.Load()

	fp, err := os.Open(configurationPath)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", configurationPath, err)
	}

	if err := configureLogging(config); err != nil {
		return nil, fmt.Errorf("error configuring logging: %w", err)
	}
	if err := configureReporting(config); err != nil {
		return nil, fmt.Errorf("error configuring error reporting: %w", err)
	}

	return config, nil
}

// configureLogging sets up the standard logger following the log section of
// the configuration.
func configureLogging(config *configuration.Configuration) error {
	level, err := logrus.ParseLevel(config.Log.Level)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", config.Log.Level, err)
	}
	logrus.SetLevel(level)

	switch config.Log.Formatter {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log formatter %q", config.Log.Formatter)
	}

	switch config.Log.Output {
	case "", "stdout":
		logrus.SetOutput(os.Stdout)
	case "stderr":
		logrus.SetOutput(os.Stderr)
	default:
		return fmt.Errorf("unknown log output %q", config.Log.Output)
	}

	return nil
}

var sentryEnabled bool

// configureReporting initializes the Sentry client when enabled in the
// configuration.
func configureReporting(config *configuration.Configuration) error {
	if !config.Reporting.Sentry.Enabled {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         config.Reporting.Sentry.DSN,
		Environment: config.Reporting.Sentry.Environment,
		Release:     version.Version,
	})
	if err != nil {
		return err
	}

	sentryEnabled = true
	return nil
}

// reportError forwards an error to Sentry when error reporting is enabled.
func reportError(err error) {
	if !sentryEnabled {
		return
	}
	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
}

// dbFromConfig opens a handle for the metadata database described in the
// configuration.
func dbFromConfig(config *configuration.Configuration) (*datastore.DB, error) {
	fields := log.Fields{"database": config.Database.DBName}
	for k, v := range config.Log.Fields {
		fields[k] = v
	}
	l := log.GetLogger().WithFields(fields)

	return datastore.Open(&datastore.DSN{
		Host:           config.Database.Host,
		Port:           config.Database.Port,
		User:           config.Database.User,
		Password:       config.Database.Password,
		DBName:         config.Database.DBName,
		SSLMode:        config.Database.SSLMode,
		ConnectTimeout: config.Database.ConnectTimeout,
	},
		datastore.WithLogger(l),
		datastore.WithPoolConfig(datastore.PoolConfig{
			MaxIdle:     config.Database.Pool.MaxIdle,
			MaxOpen:     config.Database.Pool.MaxOpen,
			MaxLifetime: config.Database.Pool.MaxLifetime,
		}),
	)
}
