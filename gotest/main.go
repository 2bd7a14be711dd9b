package gotest

import (
	"flag"
	"log"
	"math/rand"
	"strconv"
	"testing"

	"github.com/louisbranch/entropy/listener"
	"github.com/louisbranch/entropy/seed"
)

const shuffleFlag = "test.shuffle"

// Main runs the package tests as a single listener run and returns the exit
// code for os.Exit. A nil listener is built from ENTROPY_* environment
// variables.
func Main(m *testing.M, l *listener.Listener) int {
	if l == nil {
		opts, err := seed.LoadOptions(nil)
		if err != nil {
			log.Printf("entropy: warning: %v", err)
			opts = seed.DefaultOptions()
		}
		l = listener.New(opts)
	}

	if err := l.StartSuite(nil); err != nil {
		log.Printf("entropy: warning: start run: %v", err)
		return m.Run()
	}

	if !flag.Parsed() {
		flag.Parse()
	}
	if err := applyShuffle(flag.CommandLine, l); err != nil {
		log.Printf("entropy: warning: %v", err)
	}

	code := m.Run()
	if code != 0 {
		l.AddFailure()
	}
	if err := l.EndSuite(); err != nil {
		log.Printf("entropy: warning: end run: %v", err)
	}
	return code
}

// applyShuffle points -test.shuffle at the run seed when shuffling is on and
// the flag was not given on the command line.
func applyShuffle(fs *flag.FlagSet, l *listener.Listener) error {
	if !l.Options().Shuffle || fs.Lookup(shuffleFlag) == nil {
		return nil
	}
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == shuffleFlag {
			explicit = true
		}
	})
	if explicit {
		return nil
	}

	value := "on"
	if v, ok := l.Seed(); ok {
		value = strconv.FormatInt(v, 10)
	}
	return fs.Set(shuffleFlag, value)
}

// Rand returns a generator for one test, drawn from the run generator. The
// run seed is logged if the test fails. Tests calling Rand in a fixed order
// get the same sequences on every run with the same seed; parallel tests do
// not have a fixed order. Rand fails the test when l has no run started,
// since every call would then share one fixed generator.
func Rand(t testing.TB, l *listener.Listener) *rand.Rand {
	t.Helper()
	if l.State() == listener.StateUnstarted {
		t.Fatalf("entropy: Rand called before the run started; use Main or Suite.Run")
		return nil
	}
	rng := rand.New(rand.NewSource(l.Int63()))
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		if v, ok := l.Seed(); ok {
			t.Logf("entropy: run seed %d (replay with %s=%d)", v, seed.EnvKey, v)
		}
	})
	return rng
}
