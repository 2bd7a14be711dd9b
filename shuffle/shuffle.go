// Package shuffle randomizes test order unless some test depends on another.
//
// The policy is all or nothing: a single test declaring dependencies keeps
// the whole collection in its original order, since dependent tests may rely
// on their siblings having already run.
package shuffle

import "math/rand"

// Test is one reorderable item of a suite.
type Test interface {
	Name() string
}

// Dependent is implemented by tests that can declare dependencies on other
// tests. Tests that do not implement it have none.
type Dependent interface {
	HasDependencies() bool
}

// Suite is a host collection whose order the shuffler may replace.
type Suite interface {
	Tests() []Test
	SetTests(tests []Test)
}

// HasDependencies reports whether any test declares dependencies.
func HasDependencies(tests []Test) bool {
	for _, test := range tests {
		if dependsOnOthers(test) {
			return true
		}
	}
	return false
}

// Shuffle permutes the suite's tests with rng and hands the new order back
// through SetTests. When any test declares dependencies the suite is left
// untouched and SetTests is not called. It reports whether the suite was
// reordered.
func Shuffle(rng *rand.Rand, suite Suite) bool {
	if suite == nil {
		return false
	}
	tests := append([]Test(nil), suite.Tests()...)
	if !Slice(rng, tests, dependsOnOthers) {
		return false
	}
	suite.SetTests(tests)
	return true
}

// Slice applies the same policy to a plain slice, permuting it in place.
// hasDeps reports whether an item declares dependencies; nil means none do.
func Slice[T any](rng *rand.Rand, items []T, hasDeps func(T) bool) bool {
	if hasDeps != nil {
		for _, item := range items {
			if hasDeps(item) {
				return false
			}
		}
	}
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	return true
}

func dependsOnOthers(test Test) bool {
	d, ok := test.(Dependent)
	return ok && d.HasDependencies()
}
