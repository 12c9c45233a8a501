package restorer_test

import (
	"testing"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/copier"
	"firmwareboot/flash/fakeflash"
	"firmwareboot/image"
	"firmwareboot/restorer"
)

func noSleepOpts() copier.Options {
	return copier.Options{Poll: func() {}}
}

func writeMcuImage(t *testing.T, drv *fakeflash.Driver[address.McuAddress], b bank.Bank[address.McuAddress], payload []byte, eng image.Engine) {
	t.Helper()
	if err := drv.Write(b.Location, payload); err != nil {
		t.Fatalf("writing payload: %v", err)
	}
	digest := eng.NewDigest()
	digest.Write(payload)
	trailer := image.EncodeTrailer(uint32(len(payload)), digest.Sum(nil))
	trailerAddr := address.Sub(b.TrailerEnd(), uint32(len(trailer)))
	if err := drv.Write(trailerAddr, trailer); err != nil {
		t.Fatalf("writing trailer: %v", err)
	}
}

func writeExtImage(t *testing.T, drv *fakeflash.Driver[address.ExternalAddress], b bank.Bank[address.ExternalAddress], payload []byte, eng image.Engine) {
	t.Helper()
	if err := drv.Write(b.Location, payload); err != nil {
		t.Fatalf("writing payload: %v", err)
	}
	digest := eng.NewDigest()
	digest.Write(payload)
	trailer := image.EncodeTrailer(uint32(len(payload)), digest.Sum(nil))
	trailerAddr := address.Sub(b.TrailerEnd(), uint32(len(trailer)))
	if err := drv.Write(trailerAddr, trailer); err != nil {
		t.Fatalf("writing trailer: %v", err)
	}
}

func threeMcuBanks() []bank.Bank[address.McuAddress] {
	return []bank.Bank[address.McuAddress]{
		{Index: 1, Location: 0, Size: 4096, Bootable: true},
		{Index: 2, Location: 4096, Size: 4096},
		{Index: 3, Location: 8192, Size: 4096, IsGolden: true},
	}
}

func TestRestoreUsesFirstValidNonGoldenBank(t *testing.T) {
	eng := image.DefaultEngine()
	mcuDrv := fakeflash.New[address.McuAddress](3*4096, 1, 4, 4096, 0xFF)
	mcuBanks := threeMcuBanks()
	writeMcuImage(t, mcuDrv, mcuBanks[1], []byte("valid fallback image"), eng)

	result, err := restorer.Restore(mcuDrv, mcuBanks, mcuBanks[0], nil, nil, eng, noSleepOpts())
	if err != nil {
		t.Fatalf("Restore: unexpected error: %v", err)
	}
	if result.Path != restorer.PathRestored {
		t.Fatalf("Path: got %v, want PathRestored", result.Path)
	}

	boot, err := image.ReadImage(mcuDrv, mcuBanks[0], eng)
	if err != nil {
		t.Fatalf("reading restored boot bank: %v", err)
	}
	if !image.SameIdentity(boot, result.Image) {
		t.Fatalf("restored boot bank does not match reported result image")
	}
}

func TestRestoreFallsBackToGolden(t *testing.T) {
	eng := image.DefaultEngine()
	mcuDrv := fakeflash.New[address.McuAddress](3*4096, 1, 4, 4096, 0xFF)
	mcuBanks := threeMcuBanks()
	// Only the golden bank (index 3) is valid.
	writeMcuImage(t, mcuDrv, mcuBanks[2], []byte("golden fallback image"), eng)

	result, err := restorer.Restore(mcuDrv, mcuBanks, mcuBanks[0], nil, nil, eng, noSleepOpts())
	if err != nil {
		t.Fatalf("Restore: unexpected error: %v", err)
	}
	if result.Path != restorer.PathGoldenRestored {
		t.Fatalf("Path: got %v, want PathGoldenRestored", result.Path)
	}
}

func TestRestorePrefersExternalOverGolden(t *testing.T) {
	eng := image.DefaultEngine()
	mcuDrv := fakeflash.New[address.McuAddress](3*4096, 1, 4, 4096, 0xFF)
	extDrv := fakeflash.New[address.ExternalAddress](4096, 1, 1, 65536, 0xFF)
	mcuBanks := threeMcuBanks()
	externalBanks := []bank.Bank[address.ExternalAddress]{{Index: 4, Location: 0, Size: 4096}}

	writeMcuImage(t, mcuDrv, mcuBanks[2], []byte("golden image, lower priority"), eng)
	writeExtImage(t, extDrv, externalBanks[0], []byte("external image, higher priority"), eng)

	result, err := restorer.Restore(mcuDrv, mcuBanks, mcuBanks[0], extDrv, externalBanks, eng, noSleepOpts())
	if err != nil {
		t.Fatalf("Restore: unexpected error: %v", err)
	}
	if result.Path != restorer.PathRestored {
		t.Fatalf("Path: got %v, want PathRestored (external bank should win over golden)", result.Path)
	}
}

func TestRestoreNoValidImageAnywhere(t *testing.T) {
	eng := image.DefaultEngine()
	mcuDrv := fakeflash.New[address.McuAddress](3*4096, 1, 4, 4096, 0xFF)
	mcuBanks := threeMcuBanks()

	_, err := restorer.Restore(mcuDrv, mcuBanks, mcuBanks[0], nil, nil, eng, noSleepOpts())
	if err != restorer.ErrNoValidImage {
		t.Fatalf("got error %v, want ErrNoValidImage", err)
	}
}
