package seed

import (
	"log"
	"os"
	"path/filepath"

	"github.com/louisbranch/entropy/internal/platform/config"
)

// DefaultFilename is the seed file name placed in os.TempDir when no file is
// configured.
const DefaultFilename = "go-entropy-seed"

// SeedingOptions controls seed resolution and persistence.
type SeedingOptions struct {
	// Enabled turns seed resolution on. When false no seed is resolved or
	// stored, but a clean run still clears the seed file.
	Enabled bool
	// Seed is an explicitly configured seed. Nil means not configured.
	Seed *int64
	// File is the path of the persisted seed. Empty means DefaultFile().
	File string
}

// Options is the full listener configuration.
type Options struct {
	Seeding SeedingOptions
	// Shuffle randomizes the order of suites handed to the listener.
	Shuffle bool
}

// DefaultFile returns the default seed file path.
func DefaultFile() string {
	return filepath.Join(os.TempDir(), DefaultFilename)
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return Options{
		Seeding: SeedingOptions{File: DefaultFile()},
	}
}

// WithDefaults returns a copy of o with defaults filled into unset fields.
// The configured seed is copied so later changes to the caller's value do
// not leak into a running listener.
func (o Options) WithDefaults() Options {
	merged := o
	if merged.Seeding.File == "" {
		merged.Seeding.File = DefaultFile()
	}
	if o.Seeding.Seed != nil {
		v := *o.Seeding.Seed
		merged.Seeding.Seed = &v
	}
	return merged
}

// Int64 returns a pointer to v, for Options literals.
func Int64(v int64) *int64 {
	return &v
}

type envOptions struct {
	Enabled bool   `env:"ENTROPY_SEEDING_ENABLED"`
	Seed    string `env:"ENTROPY_SEED"`
	File    string `env:"ENTROPY_SEED_FILE"`
	Shuffle bool   `env:"ENTROPY_SHUFFLE"`
}

// LoadOptions reads options from ENTROPY_SEEDING_ENABLED, ENTROPY_SEED,
// ENTROPY_SEED_FILE and ENTROPY_SHUFFLE. A nil environ reads the process
// environment. The returned options have defaults applied.
//
// ENTROPY_SEED is the configured seed; the SEED variable is read later by
// the Resolver since it outranks configuration.
func LoadOptions(environ map[string]string) (Options, error) {
	var raw envOptions
	if err := config.ParseEnvFrom(&raw, environ); err != nil {
		return Options{}, err
	}

	opts := Options{
		Seeding: SeedingOptions{
			Enabled: raw.Enabled,
			File:    raw.File,
		},
		Shuffle: raw.Shuffle,
	}
	if raw.Seed != "" {
		v, ok := ParseSeed(raw.Seed)
		if !ok {
			log.Printf("entropy: warning: ignoring malformed ENTROPY_SEED %q", raw.Seed)
		} else {
			opts.Seeding.Seed = &v
		}
	}
	return opts.WithDefaults(), nil
}
