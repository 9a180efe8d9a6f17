package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bs2609/fs2/internal/wire"
)

func hashOf(b byte) wire.Hash {
	var h wire.Hash
	h[0] = b
	return h
}

func TestEnqueueIsIdempotent(t *testing.T) {
	var notified int
	q := New(func() { notified++ })

	f1, err := q.Enqueue("music/song.ogg", hashOf(1), 10, 1)
	require.NoError(t, err)
	f2, err := q.Enqueue("music/song.ogg", hashOf(2), 20, 2)
	require.NoError(t, err)

	assert.Same(t, f1, f2, "second enqueue of the same path must be a no-op")
	assert.Equal(t, hashOf(1), f2.Hash, "the original entry's data must survive")
	assert.Equal(t, 1, notified, "only the first enqueue is a structural change")
}

func TestEnqueueRejectsEmptyPath(t *testing.T) {
	q := New(nil)
	_, err := q.Enqueue("music/", hashOf(1), 10, 1)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestRemoveDeletesFile(t *testing.T) {
	q := New(nil)
	_, err := q.Enqueue("a/b/c.bin", hashOf(1), 1, 1)
	require.NoError(t, err)

	q.Remove("a/b/c.bin")
	var found bool
	q.Root().walk(func(f *File) { found = true })
	assert.False(t, found)
}

func TestMarkAndClearNoSources(t *testing.T) {
	q := New(nil)
	f1, _ := q.Enqueue("a.bin", hashOf(1), 1, 42)
	f2, _ := q.Enqueue("b.bin", hashOf(2), 1, 42)
	f3, _ := q.Enqueue("c.bin", hashOf(3), 1, 99)

	q.MarkNoSources(42)
	assert.True(t, f1.NoSources())
	assert.True(t, f2.NoSources())
	assert.False(t, f3.NoSources(), "a different dispatch id must be unaffected")

	q.ClearNoSources()
	assert.False(t, f1.NoSources())
	assert.False(t, f2.NoSources())
}

func TestNextDispatchIDIsUniquePerCall(t *testing.T) {
	q := New(nil)
	a := q.NextDispatchID()
	b := q.NextDispatchID()
	assert.NotEqual(t, a, b)
}
