package entropy

import (
	"errors"
	"flag"
	"fmt"
	"os"

	platformcmd "github.com/louisbranch/entropy/internal/platform/cmd"
	"github.com/louisbranch/entropy/internal/platform/config"
	"github.com/louisbranch/entropy/seed"
)

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// Config holds entropy command configuration.
type Config struct {
	Options seed.Options
	// GoBin is the go command used to run tests.
	GoBin string
	// HistoryDB is the SQLite file for run records. Empty disables history.
	HistoryDB string
	// History lists the last N run records instead of running tests.
	History int
	Verbose bool
	Show    bool
	Clear   bool
	// TestArgs are passed to go test after -json.
	TestArgs []string
}

type commandEnv struct {
	GoBin     string `env:"ENTROPY_GO" envDefault:"go"`
	HistoryDB string `env:"ENTROPY_HISTORY_DB"`
}

var optionKeys = []string{
	"ENTROPY_SEEDING_ENABLED",
	"ENTROPY_SEED",
	"ENTROPY_SEED_FILE",
	"ENTROPY_SHUFFLE",
	"ENTROPY_GO",
	"ENTROPY_HISTORY_DB",
}

// ParseConfig reads ENTROPY_* defaults through lookup, then parses flags.
// Arguments left after the flags are handed to go test. Seeding defaults to
// on for the command unless ENTROPY_SEEDING_ENABLED says otherwise.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag parser is required")
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	environ := make(map[string]string, len(optionKeys))
	for _, key := range optionKeys {
		if v, ok := lookup(key); ok {
			environ[key] = v
		}
	}

	opts, err := seed.LoadOptions(environ)
	if err != nil {
		return Config{}, err
	}
	if _, ok := environ["ENTROPY_SEEDING_ENABLED"]; !ok {
		opts.Seeding.Enabled = true
	}
	var cmdEnv commandEnv
	if err := config.ParseEnvFrom(&cmdEnv, environ); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Options:   opts,
		GoBin:     cmdEnv.GoBin,
		HistoryDB: cmdEnv.HistoryDB,
	}
	fs.BoolVar(&cfg.Options.Seeding.Enabled, "seeding", cfg.Options.Seeding.Enabled, "resolve, export and persist a seed")
	fs.Func("seed", "explicit seed (SEED in the environment still wins)", func(value string) error {
		v, ok := seed.ParseSeed(value)
		if !ok {
			return fmt.Errorf("invalid seed %q", value)
		}
		cfg.Options.Seeding.Seed = &v
		return nil
	})
	fs.StringVar(&cfg.Options.Seeding.File, "seed-file", cfg.Options.Seeding.File, "file holding the seed of the last failed run")
	fs.BoolVar(&cfg.Options.Shuffle, "shuffle", cfg.Options.Shuffle, "pass -shuffle=<seed> to go test")
	fs.StringVar(&cfg.GoBin, "go", cfg.GoBin, "go command")
	fs.StringVar(&cfg.HistoryDB, "history-db", cfg.HistoryDB, "SQLite file for run records")
	fs.IntVar(&cfg.History, "history", 0, "list the last N runs and exit")
	fs.BoolVar(&cfg.Verbose, "v", false, "print all test output")
	fs.BoolVar(&cfg.Show, "show", false, "print the stored seed and exit")
	fs.BoolVar(&cfg.Clear, "clear", false, "remove the stored seed and exit")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if cfg.History < 0 {
		return Config{}, fmt.Errorf("history must be positive, got %d", cfg.History)
	}
	if cfg.History > 0 && cfg.HistoryDB == "" {
		return Config{}, errors.New("-history requires -history-db or ENTROPY_HISTORY_DB")
	}
	if cfg.GoBin == "" {
		return Config{}, errors.New("go command is required")
	}
	cfg.Options = cfg.Options.WithDefaults()
	cfg.TestArgs = fs.Args()
	return cfg, nil
}
