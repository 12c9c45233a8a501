// Package orchestrator implements spec section 4.6: the top-level
// boot-and-update state machine. It is the sole entry point invoked
// by the reset vector; every other component in this repository is
// otherwise pure with respect to hardware except through the flash
// and serial interfaces it is handed.
package orchestrator

import (
	"errors"
	"time"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/bootlog"
	"firmwareboot/copier"
	"firmwareboot/flash"
	"firmwareboot/image"
	"firmwareboot/metrics"
	"firmwareboot/restorer"
	"firmwareboot/updateplan"
	"firmwareboot/updater"
)

// Clock supplies the optional boot-time-duration feature from spec
// section 3. A nil Clock disables the feature entirely: BootMetrics
// is still written, with DurationPresent left false, matching the
// original Rust bootloader's `T: time::Now` generic parameter.
type Clock interface {
	Now() time.Time
}

// Jumper performs the final, narrowly-scoped, non-returning hand-off
// described in spec section 4.6 and design note "The jump": on real
// hardware this writes the vector-table base, loads the initial stack
// pointer, and branches to the reset handler. It is isolated behind
// this interface precisely so it can be swapped for a host-side
// simulation (cmd/bootsim) that merely records success, without the
// state machine itself changing by one line.
type Jumper interface {
	Jump(img image.Image[address.McuAddress]) error
}

// Recoverer is the optional serial-recovery collaborator from spec
// section 4.6. A nil Recoverer means the feature is not compiled in:
// Recover becomes an unconditional fatal halt.
type Recoverer interface {
	Recover() error
}

// Config bundles everything the Orchestrator needs to construct,
// matching the fields the original Rust Bootloader<EXTF, MCUF, SRL, T>
// struct carries (mcu_flash, external_banks, mcu_banks, external_flash,
// serial, boot_metrics, start_time).
type Config struct {
	McuDriver      flash.Driver[address.McuAddress]
	ExternalDriver flash.Driver[address.ExternalAddress] // nil if no external flash
	Table          bank.Table
	Engine         image.Engine
	Plan           updateplan.Reader // nil if UpdatePlan unsupported
	Clock          Clock             // nil disables boot-time metrics
	Jumper         Jumper
	Recoverer      Recoverer // nil if serial recovery isn't compiled in
	Logger         bootlog.Logger
	CopyTimeout    time.Duration
}

// Orchestrator runs the state machine described in spec section 4.6:
// Init -> MaybeUpdate -> TryBoot -> {Jump | TryRestore} -> {Jump | Recover}.
type Orchestrator struct {
	cfg Config
	log bootlog.Logger
}

// New constructs an Orchestrator. It does not run Init; call Run for
// that.
func New(cfg Config) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = bootlog.Discard()
	}
	return &Orchestrator{cfg: cfg, log: log}
}

// ErrConfigurationFatal wraps an invariant violation from Init. Per
// spec section 7 this is always fatal: the device must not attempt to
// boot with an internally inconsistent bank table.
var ErrConfigurationFatal = errors.New("orchestrator: fatal configuration error")

// Run executes the full state machine to completion. It returns nil
// if Jump succeeded (i.e. the simulated non-returning hand-off
// reported success), or, when no valid image exists, whatever the
// configured Recoverer returns; every other outcome is an error, the
// gravest of which (ErrConfigurationFatal, or ErrNoValidImage with no
// Recoverer configured) represent the states spec section 4.6 calls
// fatal.
func (o *Orchestrator) Run() error {
	startTime, startPresent := o.startTime()

	if err := o.init(); err != nil {
		return err
	}

	outcome, updateErr := o.maybeUpdate()
	if updateErr != nil {
		o.log.Printf("orchestrator: update attempt failed: %v; falling through to restore", updateErr)
	}

	if img, err := o.tryBoot(); err == nil {
		path := metrics.PathDirect
		if outcome == updater.Updated {
			path = metrics.PathUpdated
		}
		return o.jump(img, path, startTime, startPresent)
	} else {
		o.log.Printf("orchestrator: boot bank invalid (%v); attempting restore", err)
	}

	result, err := o.tryRestore()
	if err != nil {
		o.log.Printf("orchestrator: restore failed: %v", err)
		return o.recover(err)
	}

	path := metrics.PathRestored
	if result.Path == restorer.PathGoldenRestored {
		path = metrics.PathGoldenRestored
	}
	return o.jump(result.Image, path, startTime, startPresent)
}

func (o *Orchestrator) startTime() (time.Time, bool) {
	if o.cfg.Clock == nil {
		return time.Time{}, false
	}
	return o.cfg.Clock.Now(), true
}

// init runs the invariant checks from spec section 3 and the feature-
// availability checks supplemented from original_source's
// verify_feature_availability: both are fatal-assertion steps, kept
// distinct because one validates the bank table and the other
// validates which collaborators were actually wired in at
// construction time.
func (o *Orchestrator) init() error {
	if err := o.cfg.Table.Validate(o.cfg.ExternalDriver != nil); err != nil {
		return errors.Join(ErrConfigurationFatal, err)
	}
	if err := o.checkFeatureAvailability(); err != nil {
		return errors.Join(ErrConfigurationFatal, err)
	}
	return nil
}

func (o *Orchestrator) checkFeatureAvailability() error {
	if o.cfg.Table.HasExternalFlash() && o.cfg.ExternalDriver == nil {
		return errors.New("external banks declared but no external flash driver supplied")
	}
	if !o.cfg.Table.HasExternalFlash() && o.cfg.ExternalDriver != nil {
		return errors.New("external flash driver supplied but no external banks declared")
	}
	return nil
}

func (o *Orchestrator) copierOptions() copier.Options {
	return copier.Options{Timeout: o.cfg.CopyTimeout, Logger: o.log}
}

func (o *Orchestrator) maybeUpdate() (updater.Outcome, error) {
	if o.cfg.ExternalDriver == nil {
		return updater.NoUpdate, nil
	}
	bootBank := o.cfg.Table.BootBank()
	return updater.Update(
		o.cfg.McuDriver, bootBank,
		o.cfg.ExternalDriver, o.cfg.Table.ExternalBanks,
		o.cfg.Engine, o.cfg.Plan, o.copierOptions(),
	)
}

func (o *Orchestrator) tryBoot() (image.Image[address.McuAddress], error) {
	bootBank := o.cfg.Table.BootBank()
	return image.ReadImage(o.cfg.McuDriver, bootBank, o.cfg.Engine)
}

func (o *Orchestrator) tryRestore() (restorer.Result, error) {
	bootBank := o.cfg.Table.BootBank()
	return restorer.Restore(
		o.cfg.McuDriver, o.cfg.Table.McuBanks, bootBank,
		o.cfg.ExternalDriver, o.cfg.Table.ExternalBanks,
		o.cfg.Engine, o.copierOptions(),
	)
}

func (o *Orchestrator) jump(img image.Image[address.McuAddress], path metrics.Path, start time.Time, startPresent bool) error {
	m := metrics.BootMetrics{Path: path}
	if startPresent {
		m.DurationMS = uint32(time.Since(start).Milliseconds())
		m.DurationPresent = true
	}
	metrics.Write(m)
	o.log.Printf("orchestrator: jumping to bank %d, path=%s", img.Bank.Index, path)
	return o.cfg.Jumper.Jump(img)
}

func (o *Orchestrator) recover(cause error) error {
	if o.cfg.Recoverer != nil {
		metrics.Write(metrics.BootMetrics{Path: metrics.PathRecovered})
		return o.cfg.Recoverer.Recover()
	}
	return errors.Join(errors.New("orchestrator: fatal halt, no valid image and no recovery compiled in"), cause)
}
