package gotest

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/entropy/listener"
	"github.com/louisbranch/entropy/seed"
)

// TestMain runs this package through Main itself. Without ENTROPY_* set the
// listener neither seeds nor shuffles. The seed file is kept out of the
// shared default since a clean run clears it.
func TestMain(m *testing.M) {
	if _, ok := os.LookupEnv("ENTROPY_SEED_FILE"); !ok {
		os.Setenv("ENTROPY_SEED_FILE", filepath.Join(os.TempDir(), "entropy-gotest-seed"))
	}
	os.Exit(Main(m, nil))
}

const subprocessEnv = "ENTROPY_GOTEST_SUBPROCESS"

// TestSubprocessFailure fails on purpose when run as a subprocess so the
// parent can observe what Main persists.
func TestSubprocessFailure(t *testing.T) {
	if os.Getenv(subprocessEnv) != "fail" {
		t.Skip("only runs as a subprocess")
	}
	t.Fatal("failing on purpose")
}

func TestSubprocessPass(t *testing.T) {
	if os.Getenv(subprocessEnv) != "pass" {
		t.Skip("only runs as a subprocess")
	}
}

func runSubprocess(t *testing.T, mode, test, seedFile string, extra ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^"+test+"$")
	cmd.Env = append(os.Environ(),
		subprocessEnv+"="+mode,
		"ENTROPY_SEEDING_ENABLED=true",
		"ENTROPY_SEED_FILE="+seedFile,
	)
	cmd.Env = append(cmd.Env, extra...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestMainStoresSeedOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed")

	out, err := runSubprocess(t, "fail", "TestSubprocessFailure", path, seed.EnvKey+"=555")
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected failing subprocess, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "Loaded seed from environment variable SEED: 555") {
		t.Fatalf("expected seed announcement, got:\n%s", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected seed file: %v", err)
	}
	if string(data) != "555" {
		t.Fatalf("expected stored seed 555, got %q", string(data))
	}
}

func TestMainReplaysAndClearsStoredSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed")
	if err := os.WriteFile(path, []byte("707"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	out, err := runSubprocess(t, "pass", "TestSubprocessPass", path, seed.EnvKey+"=")
	if err != nil {
		t.Fatalf("expected passing subprocess, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "Loaded last stored seed from "+path+": 707") {
		t.Fatalf("expected stored seed to be replayed, got:\n%s", out)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected seed file to be cleared, stat err=%v", err)
	}
}

func newShuffleFlags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String(shuffleFlag, "off", "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func startedListener(t *testing.T, opts seed.Options) *listener.Listener {
	t.Helper()
	l := listener.New(opts,
		listener.WithOutput(nil),
		listener.WithStore(seed.NewFileStore(filepath.Join(t.TempDir(), "seed"))),
		listener.WithEnv(func(string) (string, bool) { return "", false }),
	)
	if err := l.StartSuite(nil); err != nil {
		t.Fatalf("start suite: %v", err)
	}
	return l
}

func TestApplyShuffleUsesSeed(t *testing.T) {
	fs := newShuffleFlags(t)
	l := startedListener(t, seed.Options{
		Seeding: seed.SeedingOptions{Enabled: true, Seed: seed.Int64(101)},
		Shuffle: true,
	})

	if err := applyShuffle(fs, l); err != nil {
		t.Fatalf("apply shuffle: %v", err)
	}
	if got := fs.Lookup(shuffleFlag).Value.String(); got != "101" {
		t.Fatalf("expected -test.shuffle=101, got %q", got)
	}
}

func TestApplyShuffleWithoutSeeding(t *testing.T) {
	fs := newShuffleFlags(t)
	l := startedListener(t, seed.Options{Shuffle: true})

	if err := applyShuffle(fs, l); err != nil {
		t.Fatalf("apply shuffle: %v", err)
	}
	if got := fs.Lookup(shuffleFlag).Value.String(); got != "on" {
		t.Fatalf("expected -test.shuffle=on, got %q", got)
	}
}

func TestApplyShuffleKeepsExplicitFlag(t *testing.T) {
	fs := newShuffleFlags(t, "-"+shuffleFlag+"=off")
	l := startedListener(t, seed.Options{
		Seeding: seed.SeedingOptions{Enabled: true, Seed: seed.Int64(101)},
		Shuffle: true,
	})

	if err := applyShuffle(fs, l); err != nil {
		t.Fatalf("apply shuffle: %v", err)
	}
	if got := fs.Lookup(shuffleFlag).Value.String(); got != "off" {
		t.Fatalf("expected explicit flag to win, got %q", got)
	}
}

func TestApplyShuffleDisabled(t *testing.T) {
	fs := newShuffleFlags(t)
	l := startedListener(t, seed.Options{Seeding: seed.SeedingOptions{Enabled: true, Seed: seed.Int64(101)}})

	if err := applyShuffle(fs, l); err != nil {
		t.Fatalf("apply shuffle: %v", err)
	}
	if got := fs.Lookup(shuffleFlag).Value.String(); got != "off" {
		t.Fatalf("expected flag untouched, got %q", got)
	}
}

func TestRandIsDerivedFromRunSeed(t *testing.T) {
	opts := seed.Options{Seeding: seed.SeedingOptions{Enabled: true, Seed: seed.Int64(42)}}
	a := Rand(t, startedListener(t, opts)).Int63()
	b := Rand(t, startedListener(t, opts)).Int63()
	if a != b {
		t.Fatalf("expected identical draws for identical seeds, got %d and %d", a, b)
	}
}

// fatalRecorder captures Fatalf instead of stopping the test.
type fatalRecorder struct {
	testing.TB
	fatal string
}

func (r *fatalRecorder) Helper() {}

func (r *fatalRecorder) Fatalf(format string, args ...any) {
	r.fatal = fmt.Sprintf(format, args...)
}

func TestRandRequiresStartedRun(t *testing.T) {
	l := listener.New(seed.Options{}, listener.WithOutput(nil))
	rec := &fatalRecorder{TB: t}

	if rng := Rand(rec, l); rng != nil {
		t.Fatal("expected no generator before the run starts")
	}
	if !strings.Contains(rec.fatal, "before the run started") {
		t.Fatalf("expected Rand to fail the test, got %q", rec.fatal)
	}
}
