// Package updater implements spec section 4.4: deciding whether an
// external bank supersedes the current MCU image and, if so,
// installing it. It runs once at startup, before any boot attempt.
package updater

import (
	"errors"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/bootlog"
	"firmwareboot/copier"
	"firmwareboot/flash"
	"firmwareboot/image"
	"firmwareboot/updateplan"
)

// Outcome is the result of an update attempt.
type Outcome int

const (
	NoUpdate Outcome = iota
	Updated
)

func (o Outcome) String() string {
	if o == Updated {
		return "updated"
	}
	return "no-update"
}

// ErrCopyFailed wraps a Copier failure that occurred while installing
// a candidate. Per spec section 4.4 step 4, the caller (the
// Orchestrator) must treat the boot bank as possibly garbage and fall
// through to Restore — it must not treat this as fatal on its own.
var ErrCopyFailed = errors.New("updater: copy of candidate onto boot bank failed")

// Update runs the Updater's decision procedure:
//
//  1. If plan commands a skip, return NoUpdate immediately.
//  2. Scan external banks in descending index order, skipping the
//     golden bank. The first bank whose image validates and whose
//     identity differs from the current boot-bank image (or whose
//     current image is absent/invalid) is the candidate.
//  3. If a candidate exists, copy it onto the boot bank and return
//     Updated; on copy failure, return ErrCopyFailed (the boot bank
//     may now be garbage, which the Restorer will detect and fix).
//  4. If no candidate exists, return NoUpdate.
func Update(
	mcuDrv flash.Driver[address.McuAddress],
	bootBank bank.Bank[address.McuAddress],
	extDrv flash.Driver[address.ExternalAddress],
	externalBanks []bank.Bank[address.ExternalAddress],
	eng image.Engine,
	plan updateplan.Reader,
	opts copier.Options,
) (Outcome, error) {
	log := opts.Logger
	if log == nil {
		log = bootlog.Discard()
	}

	if updateplan.Skip(plan) {
		log.Printf("updater: UpdatePlan commands skip, no update attempted")
		return NoUpdate, nil
	}

	current, currentErr := image.ReadImage(mcuDrv, bootBank, eng)

	descending := descendingNonGolden(externalBanks)
	for _, b := range descending {
		candidate, err := image.ReadImage(extDrv, b, eng)
		if err != nil {
			continue // expected: empty/invalid banks drive control flow, not errors
		}
		if currentErr == nil && image.SameIdentity(current, candidate) {
			continue // identical to current: not "newer"
		}

		log.Printf("updater: installing candidate from external bank %d onto boot bank %d", b.Index, bootBank.Index)
		if _, err := copier.Copy(extDrv, b, candidate, mcuDrv, bootBank, eng, opts); err != nil {
			return NoUpdate, errors.Join(ErrCopyFailed, err)
		}
		return Updated, nil
	}

	return NoUpdate, nil
}

// descendingNonGolden returns externalBanks sorted by descending
// index with the golden bank (if any) excluded, implementing the
// "highest bank index wins" precedence rule from spec section 4.4 —
// the Open Question in spec section 9 is resolved this way, not as
// "first non-empty from the top" (see SPEC_FULL.md).
func descendingNonGolden(banks []bank.Bank[address.ExternalAddress]) []bank.Bank[address.ExternalAddress] {
	out := make([]bank.Bank[address.ExternalAddress], 0, len(banks))
	for _, b := range banks {
		if !b.IsGolden {
			out = append(out, b)
		}
	}
	return sortDescendingByIndex(out)
}

// sortDescendingByIndex is a small insertion sort: bank counts per
// port are always tiny (single digits), so this avoids pulling in
// sort.Slice for a handful of elements the way the rest of this
// package avoids unnecessary allocation.
func sortDescendingByIndex(banks []bank.Bank[address.ExternalAddress]) []bank.Bank[address.ExternalAddress] {
	for i := 1; i < len(banks); i++ {
		for j := i; j > 0 && banks[j-1].Index < banks[j].Index; j-- {
			banks[j-1], banks[j] = banks[j], banks[j-1]
		}
	}
	return banks
}

