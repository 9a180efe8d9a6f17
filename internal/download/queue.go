// Package download implements the client's download queue and
// scheduler: a persistent tree of pending downloads, a depth-first
// producer that hands inactive files to a bounded worker pool, peer
// ranking for multi-source chunked fetches, and the "no sources" batch
// marker (spec §3.5, §4.5).
package download

import (
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bs2609/fs2/internal/wire"
)

// File is one queued download (spec §3.5 "download files with {saveAs,
// hash, size, dispatchId, active-info?}").
type File struct {
	SaveAs     string
	Hash       wire.Hash
	Size       int64
	DispatchID uint64

	mu         sync.Mutex
	active     bool
	noSources  bool
	downloaded int64
}

// Active reports whether a worker currently owns this file.
func (f *File) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// NoSources reports whether this file's dispatch has been marked
// unavailable at every known peer (spec §4.5).
func (f *File) NoSources() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.noSources
}

// Progress returns bytes received so far.
func (f *File) Progress() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloaded
}

func (f *File) addProgress(n int64) {
	f.mu.Lock()
	f.downloaded += n
	f.mu.Unlock()
}

func (f *File) setActive(v bool) {
	f.mu.Lock()
	f.active = v
	f.mu.Unlock()
}

// Directory is an interior node of the queue tree: either a synthetic
// container (the root, or a download directory grouping files destined
// for one on-disk directory) or nothing - leaves are always Files (spec
// §3.5).
type Directory struct {
	Name string

	mu    sync.Mutex
	dirs  map[string]*Directory
	files map[string]*File
}

func newDirectory(name string) *Directory {
	return &Directory{Name: name, dirs: make(map[string]*Directory), files: make(map[string]*File)}
}

// ErrEmptyPath is returned by Enqueue for a path with no file name.
var ErrEmptyPath = errors.New("download: empty path")

// Queue is the root of the download tree (spec §3.5). It is safe for
// concurrent use by the producer, workers and the communicator's
// no-sources clearing notification.
type Queue struct {
	root      *Directory
	nextDisp  atomic.Uint64
	onChanged func()
}

// New creates an empty Queue. onChanged, if non-nil, is called after
// any structural mutation (enqueue, removal) so the producer
// can restart its traversal (spec §4.5 "Traversal restarts whenever the
// tree structurally changes").
func New(onChanged func()) *Queue {
	return &Queue{root: newDirectory(""), onChanged: onChanged}
}

func (q *Queue) notify() {
	if q.onChanged != nil {
		q.onChanged()
	}
}

// NextDispatchID allocates a new dispatch id for a batch of files queued
// together (spec glossary "Dispatch id").
func (q *Queue) NextDispatchID() uint64 {
	return q.nextDisp.Add(1)
}

// Enqueue adds a file at saveAs (a slash-separated path relative to the
// queue root) with the given hash, size and dispatch id. It is
// idempotent: enqueuing the same path twice leaves the queue unchanged
// after the first call (spec §8 invariant 8 "Queue idempotence").
func (q *Queue) Enqueue(saveAs string, hash wire.Hash, size int64, dispatchID uint64) (*File, error) {
	dir, base := path.Split(strings.Trim(saveAs, "/"))
	if base == "" {
		return nil, ErrEmptyPath
	}

	d := q.root
	if dir != "" {
		for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
			d = d.childDir(seg)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.files[base]; ok {
		return existing, nil
	}
	f := &File{SaveAs: saveAs, Hash: hash, Size: size, DispatchID: dispatchID}
	d.files[base] = f
	q.notify()
	return f, nil
}

// Remove deletes the file at saveAs, if present.
func (q *Queue) Remove(saveAs string) {
	dir, base := path.Split(strings.Trim(saveAs, "/"))
	d := q.root
	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg == "" {
			continue
		}
		d.mu.Lock()
		next, ok := d.dirs[seg]
		d.mu.Unlock()
		if !ok {
			return
		}
		d = next
	}
	d.mu.Lock()
	_, existed := d.files[base]
	delete(d.files, base)
	d.mu.Unlock()
	if existed {
		q.notify()
	}
}

func (d *Directory) childDir(name string) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub, ok := d.dirs[name]
	if !ok {
		sub = newDirectory(name)
		d.dirs[name] = sub
	}
	return sub
}

// MarkNoSources marks every file sharing dispatchID as having no
// available sources, so the producer skips the rest of the batch
// without re-probing (spec §4.5).
func (q *Queue) MarkNoSources(dispatchID uint64) {
	q.root.walk(func(f *File) {
		if f.DispatchID == dispatchID {
			f.mu.Lock()
			f.noSources = true
			f.mu.Unlock()
		}
	})
}

// ClearNoSources resets the no-sources marker on every file, called
// when the communicator learns of new peers (spec §4.5 "The marker is
// cleared whenever the communicator receives notice of new peers").
func (q *Queue) ClearNoSources() {
	q.root.walk(func(f *File) {
		f.mu.Lock()
		f.noSources = false
		f.mu.Unlock()
	})
}

func (d *Directory) walk(fn func(*File)) {
	d.mu.Lock()
	files := make([]*File, 0, len(d.files))
	for _, f := range d.files {
		files = append(files, f)
	}
	dirs := make([]*Directory, 0, len(d.dirs))
	for _, c := range d.dirs {
		dirs = append(dirs, c)
	}
	d.mu.Unlock()

	for _, f := range files {
		fn(f)
	}
	for _, c := range dirs {
		c.walk(fn)
	}
}

// Root exposes the queue's root directory for traversal (package
// producer.go) and tests.
func (q *Queue) Root() *Directory { return q.root }
