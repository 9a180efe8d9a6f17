// Package shareengine implements the client-side share export engine:
// the on-disk tree walker that builds and incrementally refreshes a
// share's persisted file list, including the hashing policy (spec
// §4.4).
package shareengine

import (
	"context"
	"crypto/sha256"
	"io"
	"os"
	"strconv"

	"github.com/bs2609/fs2/internal/ratelimit"
	"github.com/bs2609/fs2/internal/wire"
)

// Digest computes a file's content hash per spec §4.4's contract:
//
//	H(file[0:C] ‖ file[L-C:L] ‖ decimal-ascii(L))
//
// where C is wire.HashPrefixSuffixLen and L is the file length. If
// L < 2*C, the whole file content is used in place of head+tail (there's
// no non-overlapping prefix and suffix to take). H is SHA-256, which
// happens to produce exactly wire.FileDigestBytes of output.
//
// bandwidth, if non-nil, throttles the reads through the CPU-side
// hashing token bucket (spec §4.4 "Bandwidth for hashing is passed
// through a shared token bucket").
func Digest(ctx context.Context, path string, size int64, bandwidth *ratelimit.Bucket) (wire.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return wire.Hash{}, err
	}
	defer f.Close()

	h := sha256.New()
	const c = wire.HashPrefixSuffixLen

	if size < 2*c {
		if err := copyThrottled(ctx, h, f, size, bandwidth); err != nil {
			return wire.Hash{}, err
		}
	} else {
		if err := copyThrottled(ctx, h, io.LimitReader(f, c), c, bandwidth); err != nil {
			return wire.Hash{}, err
		}
		if _, err := f.Seek(size-c, io.SeekStart); err != nil {
			return wire.Hash{}, err
		}
		if err := copyThrottled(ctx, h, io.LimitReader(f, c), c, bandwidth); err != nil {
			return wire.Hash{}, err
		}
	}

	io.WriteString(h, strconv.FormatInt(size, 10))

	var out wire.Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// copyThrottled copies exactly want bytes from r into w, passing every
// chunk through bandwidth.WaitN first. An io.EOF before want bytes have
// been read ends the copy without error (the file may be shorter than expected if it changed
// concurrently; the caller's subsequent size/mtime comparison on the
// next refresh pass will catch that and re-hash).
func copyThrottled(ctx context.Context, w io.Writer, r io.Reader, want int64, bandwidth *ratelimit.Bucket) error {
	const chunkSize = 64 * 1024
	buf := make([]byte, chunkSize)
	var read int64
	for read < want {
		n := chunkSize
		if remaining := want - read; int64(n) > remaining {
			n = int(remaining)
		}
		nr, err := r.Read(buf[:n])
		if nr > 0 {
			if bandwidth != nil {
				if werr := bandwidth.WaitN(ctx, nr); werr != nil {
					return werr
				}
			}
			if _, werr := w.Write(buf[:nr]); werr != nil {
				return werr
			}
			read += int64(nr)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}
