package httpshare

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is a resolved, inclusive [start, end] span into a file of
// size size. end is always < size.
type byteRange struct {
	start, end int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// parseRange implements spec §6's three supported Range forms -
// "bytes=A-", "bytes=-B", "bytes=A-B" - against a file of the given
// size. Multi-range headers and anything else malformed are rejected
// with ok=false, which the caller treats as "serve the whole file"
// rather than an error (spec §6 "Out-of-range requests degrade to full
// body 200 with a warning").
func parseRange(header string, size int64) (byteRange, bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, false
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return byteRange{}, false // multi-range not supported
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return byteRange{}, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	switch {
	case startStr == "" && endStr != "":
		// bytes=-B: last B bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, false
		}
		if n > size {
			n = size
		}
		if size == 0 {
			return byteRange{}, false
		}
		return byteRange{start: size - n, end: size - 1}, true

	case startStr != "" && endStr == "":
		// bytes=A-: from A to end.
		a, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || a < 0 || a >= size {
			return byteRange{}, false
		}
		return byteRange{start: a, end: size - 1}, true

	case startStr != "" && endStr != "":
		// bytes=A-B
		a, err1 := strconv.ParseInt(startStr, 10, 64)
		b, err2 := strconv.ParseInt(endStr, 10, 64)
		if err1 != nil || err2 != nil || a < 0 || b < a || a >= size {
			return byteRange{}, false
		}
		if b >= size {
			b = size - 1
		}
		return byteRange{start: a, end: b}, true

	default:
		return byteRange{}, false
	}
}

// contentRangeHeader renders the Content-Range header value for a
// served range of a file of the given total size.
func (r byteRange) contentRangeHeader(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size)
}
