package gotest

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/louisbranch/entropy/listener"
	"github.com/louisbranch/entropy/shuffle"
)

// Case is a single subtest of a Suite.
type Case struct {
	Name string
	// DependsOn names cases of the same suite that must pass first. A case
	// whose dependencies did not pass is skipped.
	DependsOn []string
	Run       func(t *testing.T, rng *rand.Rand)
}

// Suite is an ordered group of cases plus nested suites.
type Suite struct {
	Name   string
	Cases  []Case
	Suites []*Suite
}

type caseItem struct {
	c Case
}

func (i caseItem) Name() string          { return i.c.Name }
func (i caseItem) HasDependencies() bool { return len(i.c.DependsOn) > 0 }

// Tests exposes the cases to the shuffler.
func (s *Suite) Tests() []shuffle.Test {
	tests := make([]shuffle.Test, 0, len(s.Cases))
	for _, c := range s.Cases {
		tests = append(tests, caseItem{c: c})
	}
	return tests
}

// SetTests replaces the case order.
func (s *Suite) SetTests(tests []shuffle.Test) {
	cases := make([]Case, 0, len(tests))
	for _, test := range tests {
		if item, ok := test.(caseItem); ok {
			cases = append(cases, item.c)
		}
	}
	s.Cases = cases
}

// Run executes the suite as a subtest of t, reporting to l. Each case gets
// its own generator drawn from the run generator in execution order. Run
// reports whether every case passed.
func (s *Suite) Run(t *testing.T, l *listener.Listener) bool {
	t.Helper()
	if err := l.StartSuite(s); err != nil {
		t.Fatalf("entropy: start suite %q: %v", s.Name, err)
	}
	defer func() {
		if err := l.EndSuite(); err != nil {
			t.Errorf("entropy: end suite %q: %v", s.Name, err)
		}
	}()

	name := s.Name
	if name == "" {
		name = "suite"
	}
	return t.Run(name, func(t *testing.T) {
		var mu sync.Mutex
		passed := make(map[string]bool, len(s.Cases))
		for _, c := range s.Cases {
			rng := rand.New(rand.NewSource(l.Int63()))
			t.Run(c.Name, func(t *testing.T) {
				t.Cleanup(func() {
					if t.Failed() {
						l.AddFailure()
					}
					mu.Lock()
					passed[c.Name] = !t.Failed() && !t.Skipped()
					mu.Unlock()
				})
				mu.Lock()
				var missing string
				for _, dep := range c.DependsOn {
					if !passed[dep] {
						missing = dep
						break
					}
				}
				mu.Unlock()
				if missing != "" {
					t.Skipf("depends on %q which has not passed", missing)
				}
				if c.Run != nil {
					c.Run(t, rng)
				}
			})
		}
		for _, child := range s.Suites {
			child.Run(t, l)
		}
	})
}
