package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/megalab/megaid/internal/config"
	"github.com/megalab/megaid/internal/keystore"
	"github.com/megalab/megaid/internal/logging"
	"github.com/megalab/megaid/internal/printer"
	"github.com/megalab/megaid/pkg/megaid"
	"github.com/megalab/megaid/pkg/snowflake"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Overridden in tests.
	environ = os.Environ
	now     = time.Now
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	bits       int
	envFile    string
	verbose    bool
}

// NewRootCmd builds the megaid command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "megaid",
		Short: "MEGAID - signed compound identifiers",
		Long: `MEGAID generates and manages compound identifiers.

A compound ID has three colon-separated parts:
  <snowflake>:<immutable block>:<mutable block>

The snowflake is a time-ordered integer. The immutable block is signed with
the admin key when the ID is created and never changes. The mutable block is
signed with the shared key and is re-signed on every update.

Keys are read from MEGAID_ADMIN_KEY and MEGAID_SHARED_KEY (environment or .env
file) or from Redis, as configured in megaid.yml. A random pair is generated
and stored on first use unless keys.generate is false.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			printer.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		// We print formatted colored errors directly in the printer package
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to megaid.yml")
	flags.IntVarP(&opts.bits, "bits", "b", 0, "Identifier width: 64, 52 or 32 (overrides config)")
	flags.StringVar(&opts.envFile, "env-file", "", "Path to the .env file holding the key pair (overrides config)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging to stderr")

	cmd.AddCommand(
		newCreateUTCCmd(opts),
		newCreateCustomCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDecodeCmd(opts),
		newVerifyCmd(opts),
		newKeygenCmd(opts),
		newInitCmd(),
	)
	return cmd
}

// Execute builds the root command and runs it against os.Args.
// This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// loadConfig resolves megaid.yml, MEGAID_* variables and flags, in that
// order of increasing precedence.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.MegaidConfig, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.LoadOptional(o.configPath, explicit)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"failed to load configuration",
			err.Error(),
			map[string]string{"Config": o.configPath},
			[]string{"Check the file exists and declares version: \"1.0\""},
		)
	}

	if err := cfg.ApplyEnv(environ()); err != nil {
		return nil, printer.Error(
			"invalid environment configuration",
			err.Error(),
			[]string{"Check the MEGAID_* environment variables"},
		)
	}

	if cmd.Flags().Changed("bits") {
		cfg.BitSize = o.bits
	}
	if o.envFile != "" {
		cfg.Keys.EnvFile = o.envFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{"Use --bits 64, --bits 52 or --bits 32"},
		)
	}
	return cfg, nil
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), o.verbose)
}

// openStore returns the key store named by cfg and a function releasing it.
func openStore(cfg *config.MegaidConfig) (keystore.Store, func(), error) {
	switch cfg.Keys.Source {
	case config.KeySourceRedis:
		store, err := keystore.NewRedisStoreFromURL(cfg.Keys.RedisURL, cfg.Keys.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store := keystore.NewEnvStore(cfg.Keys.EnvFile)
		store.Environ = environ
		return store, func() {}, nil
	}
}

// newEngine builds an engine from the resolved configuration and key store.
func (o *rootOptions) newEngine(cmd *cobra.Command) (*megaid.Engine, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, release, err := openStore(cfg)
	if err != nil {
		return nil, printer.Error("failed to open key store", err.Error(), nil)
	}
	defer release()

	logger := o.logger(cmd)
	provider := &keystore.Bootstrapper{
		Store:    store,
		Generate: cfg.Keys.ShouldGenerate(),
		Logger:   logger,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	engine, err := megaid.NewFromProvider(ctx, provider, cfg.BitWidth(),
		megaid.WithDefaultMetadata(cfg.DefaultMetadata),
		megaid.WithLogger(logger),
		megaid.WithClock(now),
	)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"failed to initialize MEGAID",
			err.Error(),
			map[string]string{"Key store": store.Describe()},
			[]string{
				fmt.Sprintf("Set %s and %s", keystore.AdminKeyVar, keystore.SharedKeyVar),
				"Run 'megaid keygen --save' to store a new key pair",
			},
		)
	}
	return engine, nil
}

// codecFor builds a bare codec for decoding without loading keys.
func (o *rootOptions) codecFor(cmd *cobra.Command) (*snowflake.Codec, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return snowflake.NewCodec(cfg.BitWidth())
}
