package gotestjson

import (
	"errors"
	"fmt"
	"sort"

	"github.com/louisbranch/entropy/listener"
)

// ErrMissingPackage indicates a test event without a package to attribute
// it to.
var ErrMissingPackage = errors.New("test event has no package")

type packageState struct {
	ended       bool
	failedTests int
}

// Adapter translates events into listener callbacks and keeps a Summary.
type Adapter struct {
	l        *listener.Listener
	packages map[string]*packageState
	open     []string
	summary  Summary
	elapsed  map[string]float64
}

// NewAdapter returns an Adapter reporting to l. The caller owns the
// outermost suite: it starts it before the first event and ends it after
// Close.
func NewAdapter(l *listener.Listener) *Adapter {
	return &Adapter{
		l:        l,
		packages: make(map[string]*packageState),
		elapsed:  make(map[string]float64),
	}
}

// Handle applies one event.
func (a *Adapter) Handle(ev Event) error {
	switch ev.Action {
	case ActionRaw, ActionBuildOutput:
		return nil
	case ActionBuildFail:
		a.l.AddError()
		a.summary.BuildFailures = append(a.summary.BuildFailures, ev.ImportPath)
		return nil
	}
	if ev.Package == "" {
		if ev.Action == ActionOutput {
			return nil
		}
		return fmt.Errorf("%w: action %q", ErrMissingPackage, ev.Action)
	}

	pkg, err := a.begin(ev.Package)
	if err != nil {
		return err
	}
	if pkg.ended {
		return nil
	}

	if ev.Test != "" {
		a.handleTest(ev, pkg)
		return nil
	}
	if ev.Terminal() {
		return a.end(ev, pkg)
	}
	return nil
}

// Close ends packages whose stream stopped before a terminal event, such as
// a test binary killed by a timeout. Each one counts as an error.
func (a *Adapter) Close() error {
	var errs []error
	for _, name := range a.open {
		pkg := a.packages[name]
		if pkg.ended {
			continue
		}
		a.l.AddError()
		pkg.ended = true
		a.summary.FailedPackages = append(a.summary.FailedPackages, name)
		if err := a.l.EndSuite(); err != nil {
			errs = append(errs, fmt.Errorf("end package %s: %w", name, err))
		}
	}
	a.open = nil
	return errors.Join(errs...)
}

// Summary returns the counts gathered so far.
func (a *Adapter) Summary() Summary {
	s := a.summary
	s.FailedTests = append([]string(nil), a.summary.FailedTests...)
	s.FailedPackages = append([]string(nil), a.summary.FailedPackages...)
	s.Slowest = make([]TestTiming, 0, len(a.elapsed))
	for name, elapsed := range a.elapsed {
		s.Slowest = append(s.Slowest, TestTiming{Name: name, ElapsedSeconds: elapsed})
	}
	sort.Slice(s.Slowest, func(i, j int) bool {
		if s.Slowest[i].ElapsedSeconds == s.Slowest[j].ElapsedSeconds {
			return s.Slowest[i].Name < s.Slowest[j].Name
		}
		return s.Slowest[i].ElapsedSeconds > s.Slowest[j].ElapsedSeconds
	})
	return s
}

func (a *Adapter) begin(name string) (*packageState, error) {
	if pkg, ok := a.packages[name]; ok {
		return pkg, nil
	}
	if err := a.l.StartSuite(nil); err != nil {
		return nil, fmt.Errorf("start package %s: %w", name, err)
	}
	pkg := &packageState{}
	a.packages[name] = pkg
	a.open = append(a.open, name)
	a.summary.Packages++
	return pkg, nil
}

func (a *Adapter) handleTest(ev Event, pkg *packageState) {
	id := ev.Package + "." + ev.Test
	switch ev.Action {
	case ActionPass:
		a.summary.Passed++
	case ActionSkip:
		a.summary.Skipped++
	case ActionFail:
		a.summary.Failed++
		pkg.failedTests++
		a.summary.FailedTests = append(a.summary.FailedTests, id)
		a.l.AddFailure()
	}
	if ev.Terminal() && ev.Elapsed > 0 {
		a.elapsed[id] = ev.Elapsed
	}
}

func (a *Adapter) end(ev Event, pkg *packageState) error {
	pkg.ended = true
	a.summary.Elapsed += ev.Elapsed
	if ev.Action == ActionFail {
		a.summary.FailedPackages = append(a.summary.FailedPackages, ev.Package)
		if pkg.failedTests == 0 {
			a.l.AddError()
		}
	}
	if err := a.l.EndSuite(); err != nil {
		return fmt.Errorf("end package %s: %w", ev.Package, err)
	}
	return nil
}
