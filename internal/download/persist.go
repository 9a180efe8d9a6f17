package download

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/bep/debounce"

	"github.com/bs2609/fs2/internal/wire"
)

// persistEntry is the on-disk shape of one queued file: the transient
// active/no-sources state is deliberately not persisted (spec §4.5
// "Queue persistence ... in-flight state ... is transient").
type persistEntry struct {
	SaveAs     string
	Hash       wire.Hash
	Size       int64
	DispatchID uint64
}

const queueMagic = "FS2DLQ1\x00"

// SaveToDisk writes the queue's current structure to path via the
// sibling-".working" rename idiom (spec §4.5, §6 "All writes use the
// rename-from-working idiom").
func (q *Queue) SaveToDisk(path string) error {
	var entries []persistEntry
	q.root.walkPaths("", func(full string, f *File) {
		entries = append(entries, persistEntry{SaveAs: full, Hash: f.Hash, Size: f.Size, DispatchID: f.DispatchID})
	})

	working := path + ".working"
	f, err := os.Create(working)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(queueMagic); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(f, binary.BigEndian, uint32(len(entries))); err != nil {
		f.Close()
		return err
	}
	for _, e := range entries {
		if err := writePersistEntry(f, e); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(working, path)
}

func writePersistEntry(f *os.File, e persistEntry) error {
	if err := writeString(f, e.SaveAs); err != nil {
		return err
	}
	if _, err := f.Write(e.Hash[:]); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, e.Size); err != nil {
		return err
	}
	return binary.Write(f, binary.BigEndian, e.DispatchID)
}

func writeString(f *os.File, s string) error {
	if err := binary.Write(f, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := f.WriteString(s)
	return err
}

// LoadFromDisk restores a previously saved queue (spec §4.5 "The queue
// is reloadable on start").
func LoadFromDisk(path string, onChanged func()) (*Queue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(queueMagic))
	if _, err := f.Read(magic); err != nil {
		return nil, err
	}
	if string(magic) != queueMagic {
		return nil, errTruncated
	}

	var count uint32
	if err := binary.Read(f, binary.BigEndian, &count); err != nil {
		return nil, err
	}

	q := New(onChanged)
	for i := uint32(0); i < count; i++ {
		e, err := readPersistEntry(f)
		if err != nil {
			return nil, err
		}
		if _, err := q.Enqueue(e.SaveAs, e.Hash, e.Size, e.DispatchID); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func readPersistEntry(f *os.File) (persistEntry, error) {
	var e persistEntry
	saveAs, err := readString(f)
	if err != nil {
		return e, err
	}
	e.SaveAs = saveAs
	if _, err := f.Read(e.Hash[:]); err != nil {
		return e, err
	}
	if err := binary.Read(f, binary.BigEndian, &e.Size); err != nil {
		return e, err
	}
	if err := binary.Read(f, binary.BigEndian, &e.DispatchID); err != nil {
		return e, err
	}
	return e, nil
}

func readString(f *os.File) (string, error) {
	var n uint16
	if err := binary.Read(f, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := f.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *Directory) walkPaths(prefix string, fn func(full string, f *File)) {
	d.mu.Lock()
	files := make(map[string]*File, len(d.files))
	for k, v := range d.files {
		files[k] = v
	}
	dirs := make(map[string]*Directory, len(d.dirs))
	for k, v := range d.dirs {
		dirs[k] = v
	}
	d.mu.Unlock()

	for name, f := range files {
		full := name
		if prefix != "" {
			full = prefix + "/" + name
		}
		fn(full, f)
	}
	for name, c := range dirs {
		next := name
		if prefix != "" {
			next = prefix + "/" + name
		}
		c.walkPaths(next, fn)
	}
}

var errTruncated = os.ErrInvalid

// AutoSaver debounces repeated SaveToDisk calls onto at most one
// goroutine per quiet period, so rapid queue churn doesn't thrash disk
// (spec §4.5 "saved periodically via a debounced saver").
type AutoSaver struct {
	debounced func(func())
}

// NewAutoSaver builds an AutoSaver that coalesces calls within quiet.
func NewAutoSaver(quiet time.Duration) *AutoSaver {
	return &AutoSaver{debounced: debounce.New(quiet)}
}

// Trigger schedules a save of q to path, coalescing with any other
// Trigger call within the debounce window.
func (a *AutoSaver) Trigger(q *Queue, path string, onErr func(error)) {
	a.debounced(func() {
		if err := q.SaveToDisk(path); err != nil && onErr != nil {
			onErr(err)
		}
	})
}
