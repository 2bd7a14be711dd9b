// Package entropy implements the entropy command: it runs go test with a
// reproducible seed, keeps the seed of a failing run and records run
// history.
package entropy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/entropy/internal/gotestjson"
	"github.com/louisbranch/entropy/internal/history"
	historysqlite "github.com/louisbranch/entropy/internal/history/sqlite"
	"github.com/louisbranch/entropy/listener"
	"github.com/louisbranch/entropy/seed"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExitError carries the exit status of go test. The failure has already been
// reported on the output streams.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("go test exited with status %d", e.Code)
}

// ExitCode returns the status to exit with.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Run executes the entropy command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	store := seed.NewFileStore(cfg.Options.WithDefaults().Seeding.File)

	switch {
	case cfg.Show:
		return showSeed(store, out)
	case cfg.Clear:
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Cleared stored seed in %s\n", store.Location())
		return nil
	case cfg.History > 0:
		return listHistory(ctx, cfg, out)
	}
	return runTests(ctx, cfg, store, out, errOut)
}

func showSeed(store seed.Store, out io.Writer) error {
	v, ok, err := store.Load()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "No stored seed in %s\n", store.Location())
		return nil
	}
	fmt.Fprintf(out, "Stored seed in %s: %d\n", store.Location(), v)
	return nil
}

func listHistory(ctx context.Context, cfg Config, out io.Writer) error {
	hs, err := historysqlite.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hs.Close()

	records, err := hs.List(ctx, cfg.History)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, r := range records {
		status := "ok"
		if r.Errored {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%s %s %-4s seed=%d source=%s packages=%d failed=%d duration=%s\n",
			r.StartedAt.Format(time.RFC3339), r.ID, status, r.Seed, r.Source, r.Packages, r.FailedTests,
			r.Duration().Round(time.Millisecond))
	}
	return nil
}

func runTests(ctx context.Context, cfg Config, store seed.Store, out, errOut io.Writer) error {
	started := time.Now().UTC()
	logger := log.New(errOut, "", 0)
	l := listener.New(cfg.Options,
		listener.WithStore(store),
		listener.WithOutput(out),
		listener.WithLogger(logger),
	)
	if err := l.StartSuite(nil); err != nil {
		return err
	}
	res, seeded := l.Resolution()

	cmd := exec.CommandContext(ctx, cfg.GoBin, testArgs(cfg, res.Seed, seeded)...)
	cmd.Env = os.Environ()
	if seeded {
		cmd.Env = append(cmd.Env, seed.EnvKey+"="+strconv.FormatInt(res.Seed, 10))
	}
	cmd.Stderr = errOut
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		l.AddError()
		_ = l.EndSuite()
		return fmt.Errorf("go test stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		l.AddError()
		_ = l.EndSuite()
		return fmt.Errorf("start go test: %w", err)
	}

	adapter := gotestjson.NewAdapter(l)
	reporter := gotestjson.NewReporter(out, cfg.Verbose)
	decodeErr := gotestjson.Decode(stdout, func(ev gotestjson.Event) error {
		if err := reporter.Handle(ev); err != nil {
			return err
		}
		return adapter.Handle(ev)
	})
	if decodeErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	closeErr := adapter.Close()

	code, waitErr := exitCode(waitErr)
	if code != 0 || decodeErr != nil || waitErr != nil {
		// go test can fail without reporting a test, for example on bad flags.
		l.AddError()
	}
	if err := l.EndSuite(); err != nil {
		return err
	}

	summary := adapter.Summary()
	summary.Print(out)
	result := l.Result()
	if result.Seeded && result.Errored {
		fmt.Fprintf(out, "Rerun with %s=%d\n", seed.EnvKey, result.Resolution.Seed)
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Bool("entropy.seeded", result.Seeded),
		attribute.Int64("entropy.seed", result.Resolution.Seed),
		attribute.String("entropy.source", result.Resolution.Source.String()),
		attribute.Bool("entropy.errored", result.Errored),
		attribute.Int("entropy.packages", summary.Packages),
		attribute.Int("entropy.failed_tests", summary.Failed),
	)

	historyErr := recordRun(ctx, cfg, result, summary, started)

	var errs []error
	for _, err := range []error{decodeErr, waitErr, closeErr, historyErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// testArgs builds the go test command line. -shuffle is added only when
// shuffling is on and the caller did not pass one.
func testArgs(cfg Config, seedValue int64, seeded bool) []string {
	args := []string{"test", "-json"}
	if cfg.Options.Shuffle && !hasShuffleFlag(cfg.TestArgs) {
		if seeded {
			args = append(args, "-shuffle="+strconv.FormatInt(seedValue, 10))
		} else {
			args = append(args, "-shuffle=on")
		}
	}
	return append(args, cfg.TestArgs...)
}

func hasShuffleFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		name, _, _ = strings.Cut(name, "=")
		if name == "shuffle" || name == "test.shuffle" {
			return true
		}
	}
	return false
}

// exitCode splits a cmd.Wait error into the child's exit status and any
// error that is not a plain non-zero exit.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("wait for go test: %w", err)
}

func recordRun(ctx context.Context, cfg Config, result listener.Result, summary gotestjson.Summary, started time.Time) error {
	if cfg.HistoryDB == "" || !result.Seeded {
		return nil
	}
	hs, err := historysqlite.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hs.Close()

	return hs.Put(ctx, history.Record{
		ID:          history.NewID(),
		Seed:        result.Resolution.Seed,
		Source:      result.Resolution.Source,
		Errored:     result.Errored,
		Persisted:   result.Persisted,
		Packages:    summary.Packages,
		FailedTests: summary.Failed,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	})
}
