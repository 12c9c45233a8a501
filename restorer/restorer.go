// Package restorer implements spec section 4.5: when the boot-bank
// image still fails to validate after any Updater action, find any
// other valid image (preferring non-golden, then golden) and install
// it onto the boot bank.
package restorer

import (
	"errors"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/bootlog"
	"firmwareboot/copier"
	"firmwareboot/flash"
	"firmwareboot/image"
)

// Path records which of the two restore strategies succeeded, for the
// Orchestrator to fold into BootMetrics.
type Path int

const (
	PathRestored Path = iota
	PathGoldenRestored
)

// ErrNoValidImage is returned when no bank anywhere — including the
// golden bank — holds a valid image. Per spec section 7 this is fatal
// unless serial recovery is compiled in.
var ErrNoValidImage = errors.New("restorer: no valid image found in any bank")

// Result is what a successful Restore produces.
type Result struct {
	Image image.Image[address.McuAddress]
	Path  Path
}

// Restore implements spec section 4.5:
//
//  1. Scan all banks (MCU then external), in ascending index order,
//     excluding the boot bank itself and the golden bank. Copy the
//     first valid image found onto the boot bank and report
//     PathRestored.
//  2. If none found, try the golden bank (if present and valid); copy
//     it onto the boot bank and report PathGoldenRestored.
//  3. If nothing validates anywhere, return ErrNoValidImage.
func Restore(
	mcuDrv flash.Driver[address.McuAddress],
	mcuBanks []bank.Bank[address.McuAddress],
	bootBank bank.Bank[address.McuAddress],
	extDrv flash.Driver[address.ExternalAddress],
	externalBanks []bank.Bank[address.ExternalAddress],
	eng image.Engine,
	opts copier.Options,
) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = bootlog.Discard()
	}

	for _, b := range ascendingMcu(mcuBanks) {
		if b.Index == bootBank.Index || b.IsGolden {
			continue
		}
		img, err := image.ReadImage(mcuDrv, b, eng)
		if err != nil {
			continue
		}
		log.Printf("restorer: copying valid MCU bank %d onto boot bank %d", b.Index, bootBank.Index)
		result, err := copier.Copy(mcuDrv, b, img, mcuDrv, bootBank, eng, opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Image: result, Path: PathRestored}, nil
	}

	for _, b := range externalBanks {
		if b.IsGolden {
			continue
		}
		img, err := image.ReadImage(extDrv, b, eng)
		if err != nil {
			continue
		}
		log.Printf("restorer: copying valid external bank %d onto boot bank %d", b.Index, bootBank.Index)
		result, err := copier.Copy(extDrv, b, img, mcuDrv, bootBank, eng, opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Image: result, Path: PathRestored}, nil
	}

	if goldenBank, ok := findGolden(mcuBanks); ok {
		if img, err := image.ReadImage(mcuDrv, goldenBank, eng); err == nil {
			log.Printf("restorer: copying golden MCU bank %d onto boot bank %d", goldenBank.Index, bootBank.Index)
			result, err := copier.Copy(mcuDrv, goldenBank, img, mcuDrv, bootBank, eng, opts)
			if err != nil {
				return Result{}, err
			}
			return Result{Image: result, Path: PathGoldenRestored}, nil
		}
	}
	if goldenBank, ok := findGoldenExternal(externalBanks); ok {
		if img, err := image.ReadImage(extDrv, goldenBank, eng); err == nil {
			log.Printf("restorer: copying golden external bank %d onto boot bank %d", goldenBank.Index, bootBank.Index)
			result, err := copier.Copy(extDrv, goldenBank, img, mcuDrv, bootBank, eng, opts)
			if err != nil {
				return Result{}, err
			}
			return Result{Image: result, Path: PathGoldenRestored}, nil
		}
	}

	return Result{}, ErrNoValidImage
}

func ascendingMcu(banks []bank.Bank[address.McuAddress]) []bank.Bank[address.McuAddress] {
	out := make([]bank.Bank[address.McuAddress], len(banks))
	copy(out, banks)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Index > out[j].Index; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func findGolden(banks []bank.Bank[address.McuAddress]) (bank.Bank[address.McuAddress], bool) {
	for _, b := range banks {
		if b.IsGolden {
			return b, true
		}
	}
	return bank.Bank[address.McuAddress]{}, false
}

func findGoldenExternal(banks []bank.Bank[address.ExternalAddress]) (bank.Bank[address.ExternalAddress], bool) {
	for _, b := range banks {
		if b.IsGolden {
			return b, true
		}
	}
	return bank.Bank[address.ExternalAddress]{}, false
}
