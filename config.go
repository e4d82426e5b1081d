package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind    string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	rounds        int
	rejoinTimeout time.Duration
	defaultMode   string

	databaseURL string

	oracleURL     string
	oracleKey     string
	oracleModel   string
	oracleTimeout time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid round count (must be at least 1): %d", c.rounds)
	}
	if c.rejoinTimeout < 0 {
		return fmt.Errorf("invalid rejoin timeout: %s", c.rejoinTimeout)
	}
	if c.defaultMode != modeSync && c.defaultMode != modeGuess {
		return fmt.Errorf("invalid default mode (must be %q or %q): %s", modeSync, modeGuess, c.defaultMode)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("VIBECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "vibecheck",
		Short:         "A two-player compatibility quiz, served from a single binary.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: VIBECHECK_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: VIBECHECK_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: VIBECHECK_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: VIBECHECK_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: VIBECHECK_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: VIBECHECK_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: VIBECHECK_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: VIBECHECK_VERSION)")

	fs.IntVar(&cfg.rounds, "rounds", 5, "number of questions per game (env: VIBECHECK_ROUNDS)")
	fs.DurationVar(&cfg.rejoinTimeout, "rejoin-timeout", 5*time.Minute, "window during which disconnected players may rejoin (env: VIBECHECK_REJOIN_TIMEOUT)")
	fs.StringVar(&cfg.defaultMode, "default-mode", modeSync, "game mode used when clients do not request one, either sync or guess (env: VIBECHECK_DEFAULT_MODE)")

	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string for questions and game history, disabled if empty (env: VIBECHECK_DATABASE_URL)")

	fs.StringVar(&cfg.oracleURL, "oracle-url", "https://api.openai.com/v1", "base URL of the answer-matching oracle (env: VIBECHECK_ORACLE_URL)")
	fs.StringVar(&cfg.oracleKey, "oracle-key", "", "API key for the answer-matching oracle (env: VIBECHECK_ORACLE_KEY)")
	fs.StringVar(&cfg.oracleModel, "oracle-model", "gpt-4o-mini", "model requested from the answer-matching oracle (env: VIBECHECK_ORACLE_MODEL)")
	fs.DurationVar(&cfg.oracleTimeout, "oracle-timeout", 10*time.Second, "timeout for oracle calls before falling back to literal matching (env: VIBECHECK_ORACLE_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("vibecheck v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
