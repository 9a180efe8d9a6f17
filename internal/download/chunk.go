package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/bs2609/fs2/internal/ratelimit"
)

// ErrNoSource is returned when every candidate source fails to yield a
// connection for a file (spec §4.5 "the file's dispatch id is marked
// no-sources").
var ErrNoSource = errors.New("download: no reachable source")

// ChunkSize is the fixed chunk length a file is split into for
// multi-source concurrent fetch (spec §4.5 "split into fixed-size
// chunks").
const ChunkSize = 4 * 1024 * 1024

// Fetcher performs one ranged HTTP GET against a chosen source.
type Fetcher interface {
	FetchRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error)
}

// HTTPFetcher is the real network-backed Fetcher.
type HTTPFetcher struct {
	Client *http.Client
}

// FetchRange issues a Range: bytes=start-end GET and returns the body.
func (h *HTTPFetcher) FetchRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// FetchFile downloads f in full from sources, trying ChooseSource's pick
// first and falling back through the rest of the candidate map on
// failure. Chunks are fetched one after another and written at their
// offset into dest; chunks of one file are not fetched concurrently.
// Every byte read is passed through bandwidth
// before being written, so the aggregate download rate stays under the
// client-wide cap (spec §4.5 "rate-limited against a client-wide token
// bucket").
func FetchFile(ctx context.Context, fetcher Fetcher, f *File, sources map[string]Source, stats PeerStats, dest *os.File, bandwidth *ratelimit.Bucket) error {
	f.setActive(true)
	defer f.setActive(false)

	remaining := make(map[string]Source, len(sources))
	for k, v := range sources {
		remaining[k] = v
	}

	for start := int64(0); start < f.Size; start += ChunkSize {
		end := start + ChunkSize - 1
		if end >= f.Size {
			end = f.Size - 1
		}
		if err := fetchChunk(ctx, fetcher, dest, start, end, remaining, stats, bandwidth, f); err != nil {
			return err
		}
	}
	return nil
}

func fetchChunk(ctx context.Context, fetcher Fetcher, dest *os.File, start, end int64, sources map[string]Source, stats PeerStats, bandwidth *ratelimit.Bucket, f *File) error {
	tried := make(map[string]bool)
	for {
		candidates := make(map[string]Source)
		for alias, src := range sources {
			if !tried[alias] {
				candidates[alias] = src
			}
		}
		src, ok := ChooseSource(candidates, stats)
		if !ok {
			return ErrNoSource
		}
		tried[src.Alias] = true

		stats.BeginDownload(src.Alias)
		body, err := fetcher.FetchRange(ctx, src.URL, start, end)
		if err != nil {
			stats.EndDownload(src.Alias)
			if len(tried) >= len(sources) {
				return ErrNoSource
			}
			continue
		}

		n, werr := writeChunk(ctx, dest, start, body, bandwidth)
		body.Close()
		stats.EndDownload(src.Alias)
		if werr != nil {
			if len(tried) >= len(sources) {
				return werr
			}
			continue
		}
		f.addProgress(n)
		return nil
	}
}

func writeChunk(ctx context.Context, dest *os.File, offset int64, body io.Reader, bandwidth *ratelimit.Bucket) (int64, error) {
	const bufSize = 64 * 1024
	buf := make([]byte, bufSize)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if bandwidth != nil {
				if err := bandwidth.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
			if _, err := dest.WriteAt(buf[:n], offset+written); err != nil {
				return written, err
			}
			written += int64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}
