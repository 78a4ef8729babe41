package container

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// decoderPool hands out reusable zstd decoders for unpacking packs.
type decoderPool struct {
	pool        sync.Pool
	maxMemory   uint64
	concurrency int
	lowmem      bool
}

func newDecoderPool(maxMemory uint64, concurrency int, lowmem bool) *decoderPool {
	p := &decoderPool{
		maxMemory:   maxMemory,
		concurrency: concurrency,
		lowmem:      lowmem,
	}
	p.pool.New = func() any {
		dec, err := p.newDecoder(nil)
		if err != nil {
			return nil
		}
		return dec
	}
	return p
}

// get returns a decoder reading from r and a release func that must be
// called once the caller is done with it.
func (p *decoderPool) get(r io.Reader) (*zstd.Decoder, func(), error) {
	if dec, ok := p.pool.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err == nil {
			return dec, func() {
				_ = dec.Reset(nil) //nolint:errcheck // drop the source before pooling
				p.pool.Put(dec)
			}, nil
		}
		dec.Close()
	}
	dec, err := p.newDecoder(r)
	if err != nil {
		return nil, nil, err
	}
	return dec, dec.Close, nil
}

func (p *decoderPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(p.concurrency),
		zstd.WithDecoderLowmem(p.lowmem),
	}
	if p.maxMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxMemory))
	}
	return zstd.NewReader(r, opts...)
}
