// Package listener tracks the lifecycle of a test run and applies seeding,
// seed persistence and shuffling at the right moments.
//
// A host drives a Listener with StartSuite and EndSuite for every (possibly
// nested) suite and with AddFailure or AddError for every failing test. The
// seed is resolved on the outermost StartSuite; the persistence decision is
// made when the outermost suite ends: a run that saw any failure stores its
// seed, a clean run clears it.
//
// A Listener serves a single run. Once the outermost suite has ended it
// rejects further suites with ErrRunFinished.
package listener

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/louisbranch/entropy/internal/random"
	"github.com/louisbranch/entropy/seed"
	"github.com/louisbranch/entropy/shuffle"
)

var (
	// ErrInvalidSuite indicates a suite value that cannot be used, such as a
	// typed nil pointer.
	ErrInvalidSuite = errors.New("invalid suite")
	// ErrRunFinished indicates a lifecycle call after the outermost suite ended.
	ErrRunFinished = errors.New("run already finished")
	// ErrSuiteNotStarted indicates EndSuite without a matching StartSuite.
	ErrSuiteNotStarted = errors.New("no suite started")
)

// Header is the console line announcing the resolved seed.
const Header = "Entropy Listener"

// State is the lifecycle state of a run.
type State int

const (
	StateUnstarted State = iota
	StateActive
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Result summarizes a run once it has finished.
type Result struct {
	Resolution seed.Resolution
	// Seeded is false when seeding was disabled and no seed was resolved.
	Seeded  bool
	Errored bool
	// Persisted is true when the seed was written to the store.
	Persisted bool
	// Cleared is true when the store was cleared after a clean run.
	Cleared bool
	// PersistErr holds a store failure. It is logged, never returned.
	PersistErr error
	// Shuffled counts the suites whose order was randomized.
	Shuffled int
}

// Listener is the single host-agnostic implementation of the run callbacks.
// It is safe for concurrent use.
type Listener struct {
	opts      seed.Options
	store     seed.Store
	resolver  *seed.Resolver
	seeder    func(int64)
	out       io.Writer
	logger    *log.Logger
	underline rune

	mu          sync.Mutex
	state       State
	depth       int
	initialized bool
	hasErrored  bool
	rng         *rand.Rand
	result      Result
	resolveErr  error
}

// Option customizes a Listener.
type Option func(*config)

type config struct {
	store     seed.Store
	seeder    func(int64)
	out       io.Writer
	logger    *log.Logger
	lookup    seed.LookupFunc
	generate  seed.GenerateFunc
	underline rune
}

// WithStore replaces the seed file store.
func WithStore(store seed.Store) Option {
	return func(c *config) { c.store = store }
}

// WithSeeder registers fn to receive the resolved seed. It is called at most
// once per run, and never when seeding is disabled.
func WithSeeder(fn func(int64)) Option {
	return func(c *config) { c.seeder = fn }
}

// WithOutput sets where the seed announcement is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithLogger sets the logger for warnings. Defaults to the standard logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithEnv replaces the environment lookup used for the SEED variable.
func WithEnv(lookup seed.LookupFunc) Option {
	return func(c *config) { c.lookup = lookup }
}

// WithGenerator replaces the random seed generator.
func WithGenerator(generate seed.GenerateFunc) Option {
	return func(c *config) { c.generate = generate }
}

// WithUnderline sets the character underlining the announcement header.
// Zero disables the underline.
func WithUnderline(r rune) Option {
	return func(c *config) { c.underline = r }
}

// New returns a Listener for one run configured by opts.
func New(opts seed.Options, options ...Option) *Listener {
	opts = opts.WithDefaults()
	cfg := config{
		out:       os.Stdout,
		logger:    log.Default(),
		underline: '-',
	}
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = seed.NewFileStore(opts.Seeding.File)
	}
	if cfg.out == nil {
		cfg.out = io.Discard
	}
	if cfg.logger == nil {
		cfg.logger = log.New(io.Discard, "", 0)
	}

	return &Listener{
		opts:  opts,
		store: cfg.store,
		resolver: seed.NewResolver(opts.Seeding, cfg.store,
			seed.WithLookup(cfg.lookup),
			seed.WithGenerate(cfg.generate),
			seed.WithResolverLogger(cfg.logger),
		),
		seeder:    cfg.seeder,
		out:       cfg.out,
		logger:    cfg.logger,
		underline: cfg.underline,
	}
}

// Options returns the merged options of the run.
func (l *Listener) Options() seed.Options {
	return l.opts
}

// StartSuite records the start of a suite. suite may be nil when the host
// has no reorderable collection. The outermost start resolves the seed;
// every start shuffles suite when shuffling is enabled.
func (l *Listener) StartSuite(suite shuffle.Suite) error {
	if isTypedNil(suite) {
		return fmt.Errorf("%w: nil %T", ErrInvalidSuite, suite)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateFinished {
		return ErrRunFinished
	}
	l.depth++
	l.state = StateActive
	l.initialize()

	if suite != nil && l.opts.Shuffle {
		if shuffle.Shuffle(l.rng, suite) {
			l.result.Shuffled++
		}
	}
	return nil
}

// EndSuite records the end of a suite. When the outermost suite ends the
// seed is stored if the run errored and cleared otherwise.
func (l *Listener) EndSuite() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateUnstarted:
		return ErrSuiteNotStarted
	case StateFinished:
		return ErrRunFinished
	}

	l.depth--
	if l.depth > 0 {
		return nil
	}
	l.state = StateFinished
	l.result.Errored = l.hasErrored
	l.persist()
	return nil
}

// AddFailure marks the run as failed. Repeated calls have no further effect.
func (l *Listener) AddFailure() {
	l.markErrored()
}

// AddError marks the run as errored. Repeated calls have no further effect.
func (l *Listener) AddError() {
	l.markErrored()
}

// HasErrored reports whether any failure or error was seen.
func (l *Listener) HasErrored() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasErrored
}

// Seed returns the resolved seed. ok is false before the first suite starts
// or when seeding is disabled.
func (l *Listener) Seed() (int64, bool) {
	res, ok := l.resolver.Resolved()
	return res.Seed, ok
}

// Resolution returns the full resolution record.
func (l *Listener) Resolution() (seed.Resolution, bool) {
	return l.resolver.Resolved()
}

// Rand returns the run generator. It is seeded with the resolved seed when
// seeding is enabled and randomly otherwise. Nil before the first suite.
// The generator is not safe for concurrent use.
func (l *Listener) Rand() *rand.Rand {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng
}

// Int63 draws from the run generator under the listener lock, for hosts
// that derive per-test generators from parallel code. Before the first
// StartSuite there is no generator and Int63 returns 0.
func (l *Listener) Int63() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rng == nil {
		return 0
	}
	return l.rng.Int63()
}

// State returns the lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Depth returns the current suite nesting depth.
func (l *Listener) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}

// Result returns the run summary. It is complete once State is StateFinished.
func (l *Listener) Result() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := l.result
	res.Errored = l.hasErrored
	return res
}

// Err returns the seed resolution failure, if any.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolveErr
}

func (l *Listener) markErrored() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasErrored = true
}

// initialize runs once per run with l.mu held.
func (l *Listener) initialize() {
	if l.initialized {
		return
	}
	l.initialized = true

	if !l.opts.Seeding.Enabled {
		l.rng = rand.New(rand.NewSource(unseeded()))
		return
	}

	res, err := l.resolver.Resolve()
	if err != nil {
		l.resolveErr = err
		l.logger.Printf("entropy: warning: %v", err)
		l.rng = rand.New(rand.NewSource(unseeded()))
		return
	}
	if l.seeder != nil {
		l.seeder(res.Seed)
	}
	l.rng = res.Rand()
	l.result.Resolution = res
	l.result.Seeded = true
	l.announce(res)
}

// persist runs with l.mu held, on the outermost EndSuite. A clean run
// always clears the store, seeded or not. A failed run stores its seed; with
// no resolved seed there is nothing to store.
func (l *Listener) persist() {
	if l.hasErrored {
		if !l.result.Seeded {
			l.logger.Printf("entropy: warning: run failed without a resolved seed, nothing stored in %s", l.store.Location())
			return
		}
		if err := l.store.Save(l.result.Resolution.Seed); err != nil {
			l.result.PersistErr = err
			l.logger.Printf("entropy: warning: store seed %d in %s: %v", l.result.Resolution.Seed, l.store.Location(), err)
			return
		}
		l.result.Persisted = true
		return
	}
	if err := l.store.Clear(); err != nil {
		l.result.PersistErr = err
		l.logger.Printf("entropy: warning: clear seed in %s: %v", l.store.Location(), err)
		return
	}
	l.result.Cleared = true
}

func (l *Listener) announce(res seed.Resolution) {
	l.writeLn(Header, l.underline)
	l.writeLn(" - "+res.String()+"\n", 0)
}

func (l *Listener) writeLn(line string, underline rune) {
	fmt.Fprintln(l.out, line)
	if underline != 0 {
		fmt.Fprintln(l.out, strings.Repeat(string(underline), len(line)))
	}
}

func unseeded() int64 {
	v, err := random.NewSeed()
	if err != nil {
		return 1
	}
	return v
}

func isTypedNil(suite shuffle.Suite) bool {
	if suite == nil {
		return false
	}
	v := reflect.ValueOf(suite)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
