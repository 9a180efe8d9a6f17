package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	queued    map[string]bool
	favourite map[string]bool
	active    map[string]int
}

func (f *fakeStats) RemotelyQueued(alias string) bool     { return f.queued[alias] }
func (f *fakeStats) Favourite(alias string) bool          { return f.favourite[alias] }
func (f *fakeStats) ActiveDownloadsFrom(alias string) int { return f.active[alias] }
func (f *fakeStats) BeginDownload(alias string)           {}
func (f *fakeStats) EndDownload(alias string)             {}

func TestChooseSourceFavouriteBeatsNonFavourite(t *testing.T) {
	stats := &fakeStats{favourite: map[string]bool{"alice": true}}
	sources := map[string]Source{
		"alice": {Alias: "alice", URL: "http://alice"},
		"bob":   {Alias: "bob", URL: "http://bob"},
	}
	src, ok := ChooseSource(sources, stats)
	require.True(t, ok)
	assert.Equal(t, "alice", src.Alias)
}

func TestChooseSourceRemotelyQueuedIsWorst(t *testing.T) {
	stats := &fakeStats{
		queued:    map[string]bool{"alice": true},
		favourite: map[string]bool{"alice": true},
	}
	sources := map[string]Source{
		"alice": {Alias: "alice"},
		"bob":   {Alias: "bob"},
	}
	src, ok := ChooseSource(sources, stats)
	require.True(t, ok)
	assert.Equal(t, "bob", src.Alias, "a remotely-queued peer loses even to a non-favourite")
}

func TestChooseSourceFewestActiveWins(t *testing.T) {
	stats := &fakeStats{active: map[string]int{"alice": 3, "bob": 1}}
	sources := map[string]Source{
		"alice": {Alias: "alice"},
		"bob":   {Alias: "bob"},
	}
	src, ok := ChooseSource(sources, stats)
	require.True(t, ok)
	assert.Equal(t, "bob", src.Alias)
}

func TestChooseSourceEmptyReturnsFalse(t *testing.T) {
	_, ok := ChooseSource(map[string]Source{}, &fakeStats{})
	assert.False(t, ok)
}

func TestChooseSourceTieBreaksRandomlyAmongEquals(t *testing.T) {
	stats := &fakeStats{}
	sources := map[string]Source{
		"alice": {Alias: "alice"},
		"bob":   {Alias: "bob"},
	}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		src, ok := ChooseSource(sources, stats)
		require.True(t, ok)
		seen[src.Alias] = true
	}
	assert.Len(t, seen, 2)
}
