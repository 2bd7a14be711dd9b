package seed

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/louisbranch/entropy/internal/random"
)

// EnvKey is the environment variable holding the highest-precedence seed.
const EnvKey = "SEED"

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// GenerateFunc produces a fresh seed.
type GenerateFunc func() (int64, error)

// Resolver picks the run seed once and caches it.
type Resolver struct {
	configured *int64
	store      Store
	lookup     LookupFunc
	generate   GenerateFunc
	logger     *log.Logger

	mu       sync.Mutex
	resolved *Resolution
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup LookupFunc) ResolverOption {
	return func(r *Resolver) {
		if lookup != nil {
			r.lookup = lookup
		}
	}
}

// WithGenerate replaces the crypto/rand seed generator.
func WithGenerate(generate GenerateFunc) ResolverOption {
	return func(r *Resolver) {
		if generate != nil {
			r.generate = generate
		}
	}
}

// WithResolverLogger sets the logger used for skipped candidates.
func WithResolverLogger(logger *log.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver returns a Resolver for the configured seed and store. A nil
// store behaves as an empty one.
func NewResolver(opts SeedingOptions, store Store, options ...ResolverOption) *Resolver {
	r := &Resolver{
		store:    store,
		lookup:   os.LookupEnv,
		generate: random.NewSeed,
		logger:   log.New(io.Discard, "", 0),
	}
	if opts.Seed != nil {
		v := *opts.Seed
		r.configured = &v
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Resolve returns the run seed, resolving it on the first call. Later calls
// return the cached Resolution. The only error is a failure to generate a
// fresh seed when no other source applies.
func (r *Resolver) Resolve() (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return *r.resolved, nil
	}

	res, err := r.resolve()
	if err != nil {
		return Resolution{}, err
	}
	r.resolved = &res
	return res, nil
}

// Resolved returns the cached Resolution without triggering resolution.
func (r *Resolver) Resolved() (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved == nil {
		return Resolution{}, false
	}
	return *r.resolved, true
}

func (r *Resolver) resolve() (Resolution, error) {
	if raw, ok := r.lookup(EnvKey); ok && raw != "" {
		if v, ok := ParseSeed(raw); !ok {
			r.logger.Printf("entropy: ignoring malformed %s=%q", EnvKey, raw)
		} else if v == 0 {
			r.logger.Printf("entropy: ignoring zero seed from %s", EnvKey)
		} else {
			return r.result(v, SourceEnvironment), nil
		}
	}

	if r.configured != nil {
		if *r.configured == 0 {
			r.logger.Printf("entropy: ignoring zero seed from config")
		} else {
			return r.result(*r.configured, SourceConfig), nil
		}
	}

	if r.store != nil {
		v, ok, err := r.store.Load()
		switch {
		case err != nil:
			r.logger.Printf("entropy: ignoring stored seed: %v", err)
		case ok && v == 0:
			r.logger.Printf("entropy: ignoring zero seed stored in %s", r.store.Location())
		case ok:
			return r.result(v, SourceStored), nil
		}
	}

	v, err := r.generate()
	if err != nil {
		return Resolution{}, fmt.Errorf("generate seed: %w", err)
	}
	if v == 0 {
		return Resolution{}, fmt.Errorf("generate seed: generator returned zero")
	}
	return r.result(v, SourceGenerated), nil
}

func (r *Resolver) result(v int64, source Source) Resolution {
	location := ""
	if r.store != nil {
		location = r.store.Location()
	}
	return Resolution{
		Seed:       v,
		Source:     source,
		Descriptor: describe(source, location),
	}
}
