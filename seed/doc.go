// Package seed resolves the RNG seed for a test run and persists the seed of
// failing runs so the next run can replay it.
//
// # Precedence
//
// Resolver.Resolve checks, in order:
//
//  1. the SEED environment variable;
//  2. the seed configured in Options;
//  3. the seed persisted by the last failing run;
//  4. a freshly generated random seed.
//
// The first candidate yielding a non-zero integer wins. Absent, malformed and
// zero candidates are skipped alike, so an explicit seed of 0 falls through to
// the next source.
//
// # Persistence
//
// A Store keeps the last failing seed. FileStore writes it as plain decimal
// text with no trailing metadata.
//
// Nothing in this package touches the process-wide math/rand state: callers
// draw from the *rand.Rand returned by Resolution.Rand.
package seed
