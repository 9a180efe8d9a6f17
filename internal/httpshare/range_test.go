package httpshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRangeSuffix(t *testing.T) {
	r, ok := parseRange("bytes=-50", 100)
	assert.True(t, ok)
	assert.Equal(t, byteRange{start: 50, end: 99}, r)
}

func TestParseRangePrefix(t *testing.T) {
	r, ok := parseRange("bytes=90-", 100)
	assert.True(t, ok)
	assert.Equal(t, byteRange{start: 90, end: 99}, r)
}

func TestParseRangeExplicit(t *testing.T) {
	r, ok := parseRange("bytes=100-199", 300)
	assert.True(t, ok)
	assert.Equal(t, byteRange{start: 100, end: 199}, r)
	assert.Equal(t, int64(100), r.length())
	assert.Equal(t, "bytes 100-199/300", r.contentRangeHeader(300))
}

func TestParseRangeClampsEndPastSize(t *testing.T) {
	r, ok := parseRange("bytes=0-999", 100)
	assert.True(t, ok)
	assert.Equal(t, byteRange{start: 0, end: 99}, r)
}

func TestParseRangeRejectsMultiRange(t *testing.T) {
	_, ok := parseRange("bytes=0-10,20-30", 100)
	assert.False(t, ok)
}

func TestParseRangeRejectsOutOfRangeStart(t *testing.T) {
	_, ok := parseRange("bytes=500-", 100)
	assert.False(t, ok)
}

func TestParseRangeRejectsMalformed(t *testing.T) {
	_, ok := parseRange("nonsense", 100)
	assert.False(t, ok)
}
