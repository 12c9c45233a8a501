// Package copier moves image bytes between two banks, possibly on two
// entirely different flash chips with different block/erase
// characteristics (spec section 4.3). Copy is generic over the source
// and target address spaces — the literal Go-generics expression of
// the "generic over the two sides" requirement in spec section 9,
// mirroring the EXTF/MCUF type parameters on the original Rust
// Bootloader<EXTF, MCUF, ...> struct.
package copier

import (
	"fmt"
	"time"

	"firmwareboot/address"
	"firmwareboot/bank"
	"firmwareboot/bootlog"
	"firmwareboot/flash"
	"firmwareboot/image"
)

// alignUp is the Copier's equivalent of the teacher's
// common.go align_to: rounds v up to the next multiple of a.
func alignUp(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// Options configures timeouts and polling for a Copy call. Poll lets
// tests avoid sleeping wall-clock time; production callers leave it
// nil to get time.Sleep(time.Millisecond).
type Options struct {
	Timeout time.Duration
	Poll    func()
	Logger  bootlog.Logger
}

func (o Options) poll() func() {
	if o.Poll != nil {
		return o.Poll
	}
	return func() { time.Sleep(time.Millisecond) }
}

func (o Options) logger() bootlog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return bootlog.Discard()
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return time.Second
	}
	return o.Timeout
}

// Copy implements spec section 4.3: it copies srcImage (stored in
// srcBank on srcDrv) onto tgtBank on tgtDrv, erasing only the pages
// the image needs, streaming the payload in chunks sized to the LCM
// of the two drivers' granularities, writing the trailer verbatim,
// and finally re-reading the target bank through the Image Reader to
// confirm the copy actually took.
//
// Every step is idempotent on retry (spec section 5): EraseRange
// always re-erases the same page range regardless of prior attempts,
// and Copy never assumes anything about the target bank's prior
// contents beyond what it is about to overwrite.
func Copy[SA, TA address.Space](
	srcDrv flash.Driver[SA], srcBank bank.Bank[SA], srcImage image.Image[SA],
	tgtDrv flash.Driver[TA], tgtBank bank.Bank[TA],
	eng image.Engine,
	opts Options,
) (image.Image[TA], error) {
	log := opts.logger()

	totalSize := srcImage.TotalSize()
	if uint64(totalSize) > uint64(tgtBank.Size) {
		return image.Image[TA]{}, fmt.Errorf("copier: target bank %d (size %d) too small for image of size %d",
			tgtBank.Index, tgtBank.Size, totalSize)
	}

	eraseGranularity := uint64(tgtDrv.EraseGranularity())
	if eraseGranularity == 0 {
		eraseGranularity = 1
	}
	erasedLength := alignUp(uint64(totalSize), eraseGranularity)
	eraseEnd := address.Add(tgtBank.Location, uint32(erasedLength))

	log.Printf("copier: erasing target bank %d, %d bytes", tgtBank.Index, erasedLength)
	if err := flash.Await(opts.timeout(), opts.poll(), func() error {
		return tgtDrv.EraseRange(tgtBank.Location, eraseEnd)
	}); err != nil {
		return image.Image[TA]{}, err
	}

	// The trailer sits at the end of the bank, not right after the
	// payload, so the pages holding it are erased too unless the erase
	// above already reached them.
	trailerOffset := uint64(tgtBank.Size) - uint64(image.TrailerSize(len(srcImage.Identity())))
	if tailStart := max(trailerOffset/eraseGranularity*eraseGranularity, erasedLength); tailStart < uint64(tgtBank.Size) {
		if err := flash.Await(opts.timeout(), opts.poll(), func() error {
			return tgtDrv.EraseRange(address.Add(tgtBank.Location, uint32(tailStart)), tgtBank.TrailerEnd())
		}); err != nil {
			return image.Image[TA]{}, err
		}
	}

	chunkSize := int(lcm(uint64(srcDrv.ReadGranularity()), uint64(tgtDrv.WriteGranularity())))
	if chunkSize <= 0 {
		chunkSize = 1
	}

	writer := &chunkedWriter[TA]{
		drv:       tgtDrv,
		base:      tgtBank.Location,
		chunkSize: chunkSize,
		opts:      opts,
	}

	if err := image.CopyPayload(srcDrv, srcImage, writer.write); err != nil {
		return image.Image[TA]{}, err
	}
	if err := writer.flush(); err != nil {
		return image.Image[TA]{}, err
	}

	trailer := image.EncodeTrailer(srcImage.PayloadSize, srcImage.Identity())
	trailerAddr := address.Sub(tgtBank.TrailerEnd(), uint32(len(trailer)))
	log.Printf("copier: writing trailer to bank %d at offset %d", tgtBank.Index, uint32(trailerAddr))
	if err := flash.Await(opts.timeout(), opts.poll(), func() error {
		return tgtDrv.Write(trailerAddr, trailer)
	}); err != nil {
		return image.Image[TA]{}, err
	}

	result, err := image.ReadImage(tgtDrv, tgtBank, eng)
	if err != nil {
		return image.Image[TA]{}, fmt.Errorf("copier: re-verification of bank %d failed: %w", tgtBank.Index, err)
	}
	if !image.SameIdentity(srcImage, result) {
		return image.Image[TA]{}, fmt.Errorf("copier: bank %d re-read identity mismatch after copy", tgtBank.Index)
	}
	return result, nil
}

// chunkedWriter accumulates payload bytes from image.CopyPayload's
// arbitrary-sized callback chunks into fixed chunkSize writes, so the
// actual Driver.Write calls use the negotiated chunk size regardless
// of how the source streamed its pages; only the final remainder
// written by flush may be shorter.
type chunkedWriter[A address.Space] struct {
	drv       flash.Driver[A]
	base      A
	chunkSize int
	opts      Options

	buf      []byte
	writtenN uint32
}

func (w *chunkedWriter[A]) write(offset uint32, chunk []byte) error {
	_ = offset // payload is always streamed sequentially from 0
	w.buf = append(w.buf, chunk...)
	for len(w.buf) >= w.chunkSize {
		if err := w.writeChunk(w.buf[:w.chunkSize]); err != nil {
			return err
		}
		w.buf = w.buf[w.chunkSize:]
	}
	return nil
}

func (w *chunkedWriter[A]) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	err := w.writeChunk(w.buf)
	w.buf = nil
	return err
}

func (w *chunkedWriter[A]) writeChunk(chunk []byte) error {
	addr := address.Add(w.base, w.writtenN)
	err := flash.Await(w.opts.timeout(), w.opts.poll(), func() error {
		return w.drv.Write(addr, chunk)
	})
	if err != nil {
		return err
	}
	w.writtenN += uint32(len(chunk))
	return nil
}
