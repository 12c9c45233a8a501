package copier_test

import (
	"testing"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/copier"
	"firmwareboot/flash/fakeflash"
	"firmwareboot/image"
)

func writeSourceImage(t *testing.T, drv *fakeflash.Driver[address.ExternalAddress], b bank.Bank[address.ExternalAddress], payload []byte, eng image.Engine) {
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

func noSleepOpts() copier.Options {
	return copier.Options{Poll: func() {}}
}

func TestCopyAcrossHeterogeneousGranularities(t *testing.T) {
	eng := image.DefaultEngine()
	srcDrv := fakeflash.New[address.ExternalAddress](8192, 1, 1, 65536, 0xFF)
	tgtDrv := fakeflash.New[address.McuAddress](8192, 1, 4, 4096, 0xFF)

	srcBank := bank.Bank[address.ExternalAddress]{Index: 1, Location: 0, Size: 4096}
	tgtBank := bank.Bank[address.McuAddress]{Index: 1, Location: 0, Size: 4096, Bootable: true}

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	writeSourceImage(t, srcDrv, srcBank, payload, eng)

	srcImg, err := image.ReadImage(srcDrv, srcBank, eng)
	if err != nil {
		t.Fatalf("reading source image: %v", err)
	}

	result, err := copier.Copy(srcDrv, srcBank, srcImg, tgtDrv, tgtBank, eng, noSleepOpts())
	if err != nil {
		t.Fatalf("Copy: unexpected error: %v", err)
	}
	if !image.SameIdentity(srcImg, result) {
		t.Fatalf("copied image identity mismatch")
	}
	if tgtDrv.EraseCount == 0 {
		t.Fatalf("expected target bank to have been erased")
	}
}

func TestCopyRejectsOversizedImage(t *testing.T) {
	eng := image.DefaultEngine()
	srcDrv := fakeflash.New[address.ExternalAddress](8192, 1, 1, 65536, 0xFF)
	tgtDrv := fakeflash.New[address.McuAddress](256, 1, 4, 4096, 0xFF)

	srcBank := bank.Bank[address.ExternalAddress]{Index: 1, Location: 0, Size: 4096}
	tgtBank := bank.Bank[address.McuAddress]{Index: 1, Location: 0, Size: 64, Bootable: true}

	payload := make([]byte, 1024)
	writeSourceImage(t, srcDrv, srcBank, payload, eng)
	srcImg, err := image.ReadImage(srcDrv, srcBank, eng)
	if err != nil {
		t.Fatalf("reading source image: %v", err)
	}

	if _, err := copier.Copy(srcDrv, srcBank, srcImg, tgtDrv, tgtBank, eng, noSleepOpts()); err == nil {
		t.Fatalf("expected error for target bank too small")
	}
}

func TestCopyIsIdempotentOnRetry(t *testing.T) {
	eng := image.DefaultEngine()
	srcDrv := fakeflash.New[address.ExternalAddress](8192, 1, 1, 65536, 0xFF)
	tgtDrv := fakeflash.New[address.McuAddress](8192, 1, 4, 4096, 0xFF)

	srcBank := bank.Bank[address.ExternalAddress]{Index: 1, Location: 0, Size: 4096}
	tgtBank := bank.Bank[address.McuAddress]{Index: 1, Location: 0, Size: 4096, Bootable: true}

	payload := []byte("idempotent retry payload")
	writeSourceImage(t, srcDrv, srcBank, payload, eng)
	srcImg, err := image.ReadImage(srcDrv, srcBank, eng)
	if err != nil {
		t.Fatalf("reading source image: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := copier.Copy(srcDrv, srcBank, srcImg, tgtDrv, tgtBank, eng, noSleepOpts()); err != nil {
			t.Fatalf("Copy attempt %d: unexpected error: %v", i, err)
		}
	}

	result, err := image.ReadImage(tgtDrv, tgtBank, eng)
	if err != nil {
		t.Fatalf("final re-read: %v", err)
	}
	if !image.SameIdentity(srcImg, result) {
		t.Fatalf("final image identity mismatch after repeated copy")
	}
}
