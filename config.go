package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	bind           string
	port           int
	databaseDriver string
	databaseDSN    string
	redisURL       string
	pendingTTL     time.Duration
	tokenSecret    string
	tokenTTL       time.Duration
	botSecretHash  string
	inviteURL      string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.databaseDriver != database.DriverSQLite && c.databaseDriver != database.DriverPostgres {
		return fmt.Errorf("invalid database driver %q (must be %s or %s)",
			c.databaseDriver, database.DriverSQLite, database.DriverPostgres)
	}
	if c.databaseDSN == "" {
		return errors.New("--database-dsn must not be empty")
	}
	if c.pendingTTL < 0 {
		return errors.New("--pending-ttl must not be negative")
	}
	if c.tokenTTL <= 0 {
		return errors.New("--token-ttl must be positive")
	}
	if strings.Count(c.inviteURL, "%s") != 1 {
		return errors.New("--invite-url must contain exactly one %s for the game code")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WHOAMI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "whoami",
		Short:         "Game server for \"Who am I?\": everybody guesses the word the others picked for them.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WHOAMI_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WHOAMI_PORT)")
	fs.StringVar(&cfg.databaseDriver, "database-driver", database.DriverSQLite, "database driver, sqlite or postgres (env: WHOAMI_DATABASE_DRIVER)")
	fs.StringVar(&cfg.databaseDSN, "database-dsn", "whoami.db", "sqlite file or postgres connection string (env: WHOAMI_DATABASE_DSN)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis url for pending actions, kept in memory when empty (env: WHOAMI_REDIS_URL)")
	fs.DurationVar(&cfg.pendingTTL, "pending-ttl", 30*time.Minute, "time before a selected target is forgotten, redis only (env: WHOAMI_PENDING_TTL)")
	fs.StringVar(&cfg.tokenSecret, "token-secret", "", "secret for signing session tokens, random when empty (env: WHOAMI_TOKEN_SECRET)")
	fs.DurationVar(&cfg.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of session tokens (env: WHOAMI_TOKEN_TTL)")
	fs.StringVar(&cfg.botSecretHash, "bot-secret-hash", "", "bcrypt hash of the chat bot secret, see hash-secret (env: WHOAMI_BOT_SECRET_HASH)")
	fs.StringVar(&cfg.inviteURL, "invite-url", "https://t.me/whoami_bot?start=%s", "invite link template, %s is the game code (env: WHOAMI_INVITE_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WHOAMI_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WHOAMI_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newHashSecretCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("whoami v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print the bcrypt hash to pass as --bot-secret-hash.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("could not hash secret: %w", err)
			}
			cmd.Println(string(hash))
			return nil
		},
	}
}
