package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "objpool",
		Short: "objpool - fixed-size object pool allocator",
		Long: `objpool serves many equally sized objects out of chunks obtained from the
operating system. This tool inspects chunk layouts and benchmarks allocation
patterns against a configured pool.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "objpool v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newLayoutCommand())
	root.AddCommand(newBenchCommand())
	return root
}

// override copies one setting from viper into the configuration when it
// was given as a flag or OBJPOOL_* environment variable.
type override struct {
	key   string
	flag  string
	apply func(v *viper.Viper, cfg *config.Config)
}

var overrides = []override{
	{"logging.level", "log-level", func(v *viper.Viper, c *config.Config) { c.Logging.Level = v.GetString("logging.level") }},
	{"pool.name", "name", func(v *viper.Viper, c *config.Config) { c.Pool.Name = v.GetString("pool.name") }},
	{"pool.object_size", "object-size", func(v *viper.Viper, c *config.Config) { c.Pool.ObjectSize = v.GetInt("pool.object_size") }},
	{"pool.chunk_size", "chunk-size", func(v *viper.Viper, c *config.Config) { c.Pool.ChunkSize = v.GetInt("pool.chunk_size") }},
	{"pool.min_chunk_size", "min-chunk-size", func(v *viper.Viper, c *config.Config) { c.Pool.MinChunkSize = v.GetInt("pool.min_chunk_size") }},
	{"pool.alignment", "alignment", func(v *viper.Viper, c *config.Config) { c.Pool.Alignment = v.GetInt("pool.alignment") }},
	{"pool.max_chunks", "max-chunks", func(v *viper.Viper, c *config.Config) { c.Pool.MaxChunks = v.GetInt("pool.max_chunks") }},
	{"pool.locking", "locking", func(v *viper.Viper, c *config.Config) { c.Pool.Locking = v.GetString("pool.locking") }},
	{"pool.source", "source", func(v *viper.Viper, c *config.Config) { c.Pool.Source = v.GetString("pool.source") }},
	{"bench.objects", "objects", func(v *viper.Viper, c *config.Config) { c.Bench.Objects = v.GetInt("bench.objects") }},
	{"bench.rounds", "rounds", func(v *viper.Viper, c *config.Config) { c.Bench.Rounds = v.GetInt("bench.rounds") }},
	{"bench.pattern", "pattern", func(v *viper.Viper, c *config.Config) { c.Bench.Pattern = v.GetString("bench.pattern") }},
	{"bench.workers", "workers", func(v *viper.Viper, c *config.Config) { c.Bench.Workers = v.GetInt("bench.workers") }},
	{"bench.seed", "seed", func(v *viper.Viper, c *config.Config) { c.Bench.Seed = v.GetInt64("bench.seed") }},
	{"tracing.enabled", "trace", func(v *viper.Viper, c *config.Config) { c.Tracing.Enabled = v.GetBool("tracing.enabled") }},
	{"metrics.address", "metrics-addr", func(v *viper.Viper, c *config.Config) {
		c.Metrics.Address = v.GetString("metrics.address")
		c.Metrics.Enabled = c.Metrics.Address != ""
	}},
}

// loadConfig builds the configuration from defaults, the --config file,
// OBJPOOL_* environment variables and flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	v := viper.New()
	v.SetEnvPrefix("OBJPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, o := range overrides {
		if f := cmd.Flags().Lookup(o.flag); f != nil {
			if err := v.BindPFlag(o.key, f); err != nil {
				return nil, err
			}
		}
		if err := v.BindEnv(o.key); err != nil {
			return nil, err
		}
		if v.IsSet(o.key) {
			o.apply(v, cfg)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logCfg := logger.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	logCfg.OutputPaths = []string{"stderr"}
	if err := logger.Init(logCfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
