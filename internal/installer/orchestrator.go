package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/downloader"
	"github.com/open-edge-platform/stack-installer/internal/event"
	"github.com/open-edge-platform/stack-installer/internal/extractor"
	"github.com/open-edge-platform/stack-installer/internal/installerr"
	"github.com/open-edge-platform/stack-installer/internal/pkgmanager"
	"github.com/open-edge-platform/stack-installer/internal/provider"
	"github.com/open-edge-platform/stack-installer/internal/repository"
	"github.com/open-edge-platform/stack-installer/internal/utils/file"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// ErrRunInProgress is returned when Run is called while another run of the
// same Orchestrator is active.
var ErrRunInProgress = errors.New("an install run is already in progress")

// Catalog loads the merged package catalog.
type Catalog interface {
	GetAvailablePackages(ctx context.Context, source repository.Source) ([]catalog.Package, error)
}

// PackageInstaller downloads and lays out one resolved package.
type PackageInstaller interface {
	Install(ctx context.Context, pkg catalog.Package, root string, progress pkgmanager.ProgressFunc) (string, error)
}

// ConfigurerLookup finds the configuration step of a package.
type ConfigurerLookup func(id catalog.PackageID) (provider.Configurer, bool)

// InstallOptions describe one install run.
type InstallOptions struct {
	InstallRoot string
	Select      []catalog.PackageID
	Ports       provider.Ports
}

// Orchestrator drives the install state machine. Progress counters belong to
// the run in flight; listeners only ever see event snapshots.
type Orchestrator struct {
	catalog     Catalog
	source      repository.Source
	packages    PackageInstaller
	configurers ConfigurerLookup

	running atomic.Bool

	mu    sync.Mutex
	state State

	runID    string
	events   chan<- event.Event
	progress progressState
	log      *zap.SugaredLogger
}

type Option func(*Orchestrator)

// WithCatalog sets the catalog and the source it is loaded from.
func WithCatalog(c Catalog, source repository.Source) Option {
	return func(o *Orchestrator) {
		o.catalog = c
		o.source = source
	}
}

func WithPackageInstaller(p PackageInstaller) Option {
	return func(o *Orchestrator) { o.packages = p }
}

func WithConfigurers(lookup ConfigurerLookup) Option {
	return func(o *Orchestrator) { o.configurers = lookup }
}

// New returns an Orchestrator. Anything not set through opts uses the
// default repository, downloader, extractor and registered configurers.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{configurers: provider.Get}
	for _, opt := range opts {
		opt(o)
	}
	if o.catalog == nil || o.packages == nil {
		repo := repository.New()
		if o.catalog == nil {
			o.catalog = repo
		}
		if o.packages == nil {
			o.packages = pkgmanager.New(repo, downloader.New(), extractor.New())
		}
	}
	return o
}

// State returns the current state of the state machine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	if o.log != nil && prev != s {
		o.log.Debugf("state %s -> %s", prev, s)
	}
}

// Run performs one install. Every event carries the run ID; events is
// closed when Run returns, so the caller must keep draining it. A cancelled
// run returns an error for which installerr.IsCancelled is true.
func (o *Orchestrator) Run(ctx context.Context, opts InstallOptions, events chan<- event.Event) error {
	if events != nil {
		defer close(events)
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer o.running.Store(false)

	o.runID = uuid.NewString()
	o.events = events
	o.progress = progressState{}
	o.log = logger.Logger().With("run", o.runID)
	o.setState(Initializing)

	start := time.Now()
	o.log.Infof("starting installation of %v into %s", opts.Select, opts.InstallRoot)
	o.emitProgress("starting installation", "")

	root, err := o.run(ctx, opts)
	switch {
	case err == nil:
		o.setState(Completed)
		elapsed := time.Since(start).Round(time.Millisecond)
		o.log.Infof("installation completed in %s", elapsed)
		o.emit(event.Event{Type: event.ProgressChanged, Percent: o.progress.finish(), Message: "installation completed"})
		o.emit(event.Event{
			Type:    event.InstallationCompleted,
			Percent: 100,
			Message: fmt.Sprintf("installed into %s in %s", root, elapsed),
		})
		return nil

	case installerr.IsCancelled(err):
		if !errors.Is(err, installerr.ErrOperationCancelled) {
			err = installerr.Cancelled("installer", err)
		}
		phase := o.State()
		o.setState(Cancelled)
		o.log.Warnf("installation cancelled during %s", phase)
		o.emit(event.Event{
			Type:      event.ProgressChanged,
			Percent:   o.progress.overall(),
			Message:   "installation cancelled",
			Component: installerr.ComponentOf(err),
		})
		return err

	default:
		phase := o.State()
		o.setState(Failed)
		o.log.Errorw("installation failed",
			"phase", phase.String(),
			"component", installerr.ComponentOf(err),
			"error", err,
			"errorType", fmt.Sprintf("%T", err))
		o.emitError(phase, err)
		return err
	}
}

func (o *Orchestrator) run(ctx context.Context, opts InstallOptions) (string, error) {
	if len(opts.Select) == 0 {
		return "", errors.New("no packages selected")
	}

	if err := o.enter(ctx, ValidatingPath, 0, "validating install directory"); err != nil {
		return "", err
	}
	root, err := ValidateInstallRoot(opts.InstallRoot)
	if err != nil {
		return "", err
	}

	if err := o.enter(ctx, CreatingDirectories, 0, "creating directories"); err != nil {
		return root, err
	}
	if err := createLayout(root); err != nil {
		return root, err
	}

	if err := o.enter(ctx, InstallingPackages, 0, "resolving packages"); err != nil {
		return root, err
	}
	ordered, selected, err := o.resolve(ctx, opts.Select)
	if err != nil {
		return root, err
	}
	if err := o.installAll(ctx, root, ordered); err != nil {
		return root, err
	}

	if err := o.enter(ctx, ConfiguringPackages, len(ordered), "configuring packages"); err != nil {
		return root, err
	}
	paths := provider.NewPathResolver(root, opts.Ports, ordered)
	if err := o.configureAll(ctx, paths, ordered); err != nil {
		return root, err
	}

	if err := o.enter(ctx, CleaningUp, 0, "removing temporary files"); err != nil {
		return root, err
	}
	o.cleanup(root)

	if err := o.enter(ctx, ValidatingInstallation, len(selected), "validating installation"); err != nil {
		return root, err
	}
	return root, o.validate(root, selected)
}

// enter checks for cancellation and moves the state machine to s.
func (o *Orchestrator) enter(ctx context.Context, s State, units int, message string) error {
	if err := installerr.CheckContext(ctx, "installer"); err != nil {
		return err
	}
	o.setState(s)
	o.progress.enter(s, units)
	o.emitProgress(message, "")
	return nil
}

// resolve returns the full install order and the catalog entries of the
// selected packages.
func (o *Orchestrator) resolve(ctx context.Context, ids []catalog.PackageID) ([]catalog.Package, []catalog.Package, error) {
	available, err := o.catalog.GetAvailablePackages(ctx, o.source)
	if err != nil {
		return nil, nil, installerr.Wrap(installerr.ErrCatalogUnavailable, "catalog", err)
	}
	byID := make(map[catalog.PackageID]catalog.Package, len(available))
	for _, p := range available {
		byID[p.ID] = p
	}

	var selected []catalog.Package
	seen := make(map[catalog.PackageID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, ok := byID[id]
		if !ok {
			return nil, nil, installerr.New(installerr.ErrCatalogUnavailable, string(id), "package not present in catalog", nil)
		}
		selected = append(selected, p)
	}

	ordered, err := repository.ResolveDependencies(selected, available)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(ordered))
	for i, p := range ordered {
		names[i] = string(p.ID)
	}
	o.log.Infof("install order: %s", strings.Join(names, ", "))
	return ordered, selected, nil
}

func (o *Orchestrator) installAll(ctx context.Context, root string, ordered []catalog.Package) error {
	o.progress.enter(InstallingPackages, len(ordered))
	for i, pkg := range ordered {
		if err := installerr.CheckContext(ctx, string(pkg.ID)); err != nil {
			return err
		}
		o.progress.step(i)
		o.emitProgress(fmt.Sprintf("installing %s (%d of %d)", pkg.Name, i+1, len(ordered)), string(pkg.ID))

		_, err := o.packages.Install(ctx, pkg, root, func(p pkgmanager.Progress) {
			if p.Done != nil {
				o.emitPackageDone(p.Done)
				return
			}
			o.progress.setUnitPercent(p.Percent)
			o.emitProgress(p.Message, string(p.Package))
		})
		if err != nil {
			return installerr.Wrap(installerr.ErrDownloadFailed, string(pkg.ID), err)
		}
	}
	return nil
}

// configureAll runs configuration steps in install order. Failures of
// optional packages are reported and skipped.
func (o *Orchestrator) configureAll(ctx context.Context, paths *provider.PathResolver, ordered []catalog.Package) error {
	for i, pkg := range ordered {
		component := string(pkg.ID)
		if err := installerr.CheckContext(ctx, component); err != nil {
			return err
		}
		o.progress.step(i)
		c, ok := o.configurers(pkg.ID)
		if !ok {
			o.log.Debugf("%s has no configuration step", pkg.ID)
			continue
		}
		o.emitProgress(fmt.Sprintf("configuring %s", pkg.Name), component)

		err := c.Configure(ctx, paths, func(pct int, msg string) {
			o.progress.setUnitPercent(pct)
			o.emitProgress(msg, component)
		})
		if err == nil {
			continue
		}
		if installerr.IsCancelled(err) {
			return installerr.Wrap(installerr.ErrConfigurationFailed, component, err)
		}
		cfgErr := installerr.New(installerr.ErrConfigurationFailed, component, "configuration failed", err)
		if !pkg.Optional {
			return cfgErr
		}
		o.log.Warnw("configuration of optional package failed, continuing",
			"package", component, "error", err, "errorType", fmt.Sprintf("%T", err))
		o.emitError(o.State(), cfgErr)
	}
	return nil
}

// cleanup is best effort.
func (o *Orchestrator) cleanup(root string) {
	for _, dir := range []string{pkgmanager.DownloadsDir(root), pkgmanager.TempDir(root)} {
		if err := os.RemoveAll(dir); err != nil {
			o.log.Warnf("failed to remove %s: %v", dir, err)
		}
	}
}

func (o *Orchestrator) validate(root string, selected []catalog.Package) error {
	for i, pkg := range selected {
		o.progress.step(i)
		dir := pkgmanager.FinalPath(root, pkg)
		if err := extractor.VerifyMarkers(dir, pkg.Markers); err != nil {
			return installerr.New(installerr.ErrInstallationValidationFailed, string(pkg.ID),
				"installed files are incomplete", err)
		}
		o.progress.setUnitPercent(100)
		o.emitProgress(fmt.Sprintf("%s verified", pkg.Name), string(pkg.ID))
	}
	return nil
}

// ValidateInstallRoot accepts a directory that is empty or can be created,
// and that is writable. It returns the absolute path.
func ValidateInstallRoot(root string) (string, error) {
	fail := func(msg string, err error) (string, error) {
		return "", installerr.New(installerr.ErrPathValidationFailed, "install root", msg, err)
	}
	if strings.TrimSpace(root) == "" {
		return fail("no install directory given", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fail("cannot resolve "+root, err)
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fail(abs+" is not a directory", nil)
		}
		empty, err := file.IsDirEmpty(abs)
		if err != nil {
			return fail("cannot read "+abs, err)
		}
		if !empty {
			return fail(abs+" is not empty", nil)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(abs, 0755); err != nil {
			return fail("cannot create "+abs, err)
		}
	default:
		return fail("cannot access "+abs, err)
	}

	probe, err := os.CreateTemp(abs, ".write-test-*")
	if err != nil {
		return fail(abs+" is not writable", err)
	}
	probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return fail("cannot clean up in "+abs, err)
	}
	return abs, nil
}

func createLayout(root string) error {
	for _, dir := range pkgmanager.BaseLayout(root) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return installerr.New(installerr.ErrPathValidationFailed, "install root",
				"cannot create "+dir, err)
		}
	}
	return nil
}

func (o *Orchestrator) emit(ev event.Event) {
	if o.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.RunID = o.runID
	if ev.Phase == "" {
		ev.Phase = o.State().String()
	}
	o.events <- ev
}

func (o *Orchestrator) emitProgress(message, component string) {
	o.emit(event.Event{
		Type:      event.ProgressChanged,
		Percent:   o.progress.overall(),
		Message:   message,
		Component: component,
	})
}

// emitError reports err against the phase it happened in, which may already
// have been left for a terminal state.
func (o *Orchestrator) emitError(phase State, err error) {
	o.emit(event.Event{
		Type:      event.ErrorOccurred,
		Phase:     phase.String(),
		Percent:   o.progress.overall(),
		Message:   installerr.Summary(err),
		Component: installerr.ComponentOf(err),
		Error:     err.Error(),
		Err:       err,
	})
}

func (o *Orchestrator) emitPackageDone(res *pkgmanager.Result) {
	status := &event.PackageStatus{
		ID:      string(res.Package),
		Success: res.Success,
		Elapsed: res.Elapsed,
		Path:    res.Path,
		Skipped: append([]string(nil), res.Skipped...),
	}
	msg := fmt.Sprintf("%s installed", res.Package)
	if !res.Success {
		msg = fmt.Sprintf("%s failed", res.Package)
	} else {
		o.progress.setUnitPercent(100)
	}
	o.emit(event.Event{
		Type:      event.PackageCompleted,
		Percent:   o.progress.overall(),
		Message:   msg,
		Component: string(res.Package),
		Package:   status,
	})
}
