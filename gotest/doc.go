// Package gotest drives a listener.Listener from the standard testing
// package.
//
// Main wraps TestMain so that the whole package binary is one run:
//
//	var run = listener.New(seed.Options{
//		Seeding: seed.SeedingOptions{Enabled: true},
//		Shuffle: true,
//	})
//
//	func TestMain(m *testing.M) {
//		os.Exit(gotest.Main(m, run))
//	}
//
// With shuffling enabled Main passes the resolved seed to -test.shuffle, so
// a failing order is replayed by the next run.
//
// Suite groups ordered subtests that the listener may shuffle. Cases that
// declare dependencies keep the whole suite in declaration order.
package gotest
