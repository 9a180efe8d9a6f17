package shareengine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bs2609/fs2/internal/filelist"
	"github.com/bs2609/fs2/internal/ratelimit"
	"github.com/bs2609/fs2/internal/wire"
)

// incompleteSuffix marks a file that is still being written to by
// another process and must never be listed (spec §4.4 step 1).
const incompleteSuffix = ".incomplete"

// Cancelled is checked at every directory boundary so a refresh can be
// stopped cooperatively (spec §4.4 "A refresh can be cancelled
// cooperatively at any directory boundary").
type Cancelled func() bool

// refreshDir implements the per-directory refresh algorithm of spec
// §4.4: compare the current directory listing against the prior file
// list's children by name, re-hashing only what changed, recursing into
// subdirectories before moving to the next sibling (which is simply the
// order a depth-first recursive walk already produces), and dropping any
// prior entry no longer present on disk.
func refreshDir(ctx context.Context, canonicalRoot, dirPath string, prior []filelist.Item, bandwidth *ratelimit.Bucket, cancelled Cancelled) ([]filelist.Item, error) {
	if cancelled != nil && cancelled() {
		return prior, context.Canceled
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	priorByName := make(map[string]filelist.Item, len(prior))
	for _, p := range prior {
		priorByName[p.Name] = p
	}

	out := make([]filelist.Item, 0, len(entries))
	for _, de := range entries {
		name := de.Name()
		full := filepath.Join(dirPath, name)

		if !de.IsDir() {
			if strings.HasSuffix(name, incompleteSuffix) {
				continue
			}
			if strings.HasPrefix(name, ".") {
				continue // hidden non-directory entries are excluded
			}
		}

		info, err := de.Info()
		if err != nil {
			continue // vanished between ReadDir and Info: skip, next pass will settle
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(full)
			if err != nil {
				continue
			}
			rel, err := filepath.Rel(canonicalRoot, target)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue // escapes the canonical share root
			}
			info, err = os.Stat(target)
			if err != nil {
				continue
			}
		}

		if info.IsDir() {
			priorChildren := priorByName[name].Children
			children, err := refreshDir(ctx, canonicalRoot, full, priorChildren, bandwidth, cancelled)
			if err != nil {
				return nil, err
			}
			out = append(out, filelist.Item{Name: name, Children: children})
			continue
		}

		item, err := refreshFile(ctx, full, name, info, priorByName[name], bandwidth)
		if err != nil {
			continue // unreadable file: drop it this pass, retry next refresh
		}
		out = append(out, item)
	}

	return out, nil
}

// refreshFile decides whether name needs re-hashing: new, or its size,
// mtime or hash version differ from the prior list's entry; otherwise
// the prior hash is retained untouched (spec §4.4 step 2).
func refreshFile(ctx context.Context, path, name string, info os.FileInfo, prior filelist.Item, bandwidth *ratelimit.Bucket) (filelist.Item, error) {
	size := info.Size()
	mtime := info.ModTime()

	needsHash := prior.IsDir() // zero-value prior.Children is nil too, so !IsDir() means either "no prior" or "was a file"; treat a type-changed entry (was dir, now file) as needing hash
	hasPrior := prior.Name == name && !prior.IsDir() && !prior.Hash.IsZero()
	if !hasPrior {
		needsHash = true
	} else if prior.Size != size || !prior.LastModified.Equal(mtime) || prior.HashVersion != wire.CurrentHashVersion {
		needsHash = true
	}

	if !needsHash {
		return filelist.Item{
			Name: name, Size: size, LastModified: mtime,
			HashVersion: prior.HashVersion, Hash: prior.Hash,
		}, nil
	}

	h, err := Digest(ctx, path, size, bandwidth)
	if err != nil {
		return filelist.Item{}, err
	}
	return filelist.Item{
		Name: name, Size: size, LastModified: mtime,
		HashVersion: wire.CurrentHashVersion, Hash: h,
	}, nil
}
