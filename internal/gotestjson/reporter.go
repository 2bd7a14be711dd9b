package gotestjson

import (
	"io"
	"strings"
)

// Reporter prints test output the way `go test` does without -v: output of
// passing tests is dropped, output of failing tests and packages is printed
// when they fail, and a passing or skipped package prints its "ok" or "?"
// status line. In verbose mode every output line is printed as it comes.
type Reporter struct {
	w       io.Writer
	verbose bool
	pending map[string]*strings.Builder
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer, verbose bool) *Reporter {
	return &Reporter{
		w:       w,
		verbose: verbose,
		pending: make(map[string]*strings.Builder),
	}
}

// Handle consumes one event.
func (r *Reporter) Handle(ev Event) error {
	switch ev.Action {
	case ActionRaw, ActionBuildOutput:
		_, err := io.WriteString(r.w, ev.Output)
		return err
	case ActionOutput:
		if r.verbose {
			_, err := io.WriteString(r.w, ev.Output)
			return err
		}
		key := ev.Package + "\x00" + ev.Test
		buf, ok := r.pending[key]
		if !ok {
			buf = &strings.Builder{}
			r.pending[key] = buf
		}
		buf.WriteString(ev.Output)
		return nil
	}

	if r.verbose || !ev.Terminal() {
		return nil
	}
	key := ev.Package + "\x00" + ev.Test
	buf, ok := r.pending[key]
	delete(r.pending, key)
	if !ok {
		return nil
	}
	if ev.Action == ActionFail {
		_, err := io.WriteString(r.w, buf.String())
		return err
	}
	if ev.Test != "" {
		return nil
	}
	for _, line := range strings.SplitAfter(buf.String(), "\n") {
		if isPackageStatus(line) {
			if _, err := io.WriteString(r.w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// isPackageStatus matches the per-package lines go test prints without -v,
// such as "ok  \tpkg\t0.01s" and "?   \tpkg\t[no test files]".
func isPackageStatus(line string) bool {
	return strings.HasPrefix(line, "ok ") || strings.HasPrefix(line, "ok\t") || strings.HasPrefix(line, "? ")
}
