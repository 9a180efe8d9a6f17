package filelist

import (
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// WorkingSuffix is appended to the sibling file every atomic write goes
// through before being renamed into place (spec §4.4 "Refresh
// atomicity", §6 "All writes use the rename-from-working idiom").
const WorkingSuffix = ".working"

// SaveToDisk zstd-compresses root's binary encoding and writes it to
// path via a sibling ".working" file followed by a rename, so a process
// crash mid-write never corrupts the live file (spec §6).
func SaveToDisk(path string, root Item) error {
	raw, err := EncodeBinary(root)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return err
	}

	working := path + WorkingSuffix
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(working, compressed, 0o644); err != nil {
		return err
	}
	return os.Rename(working, path)
}

// LoadFromDisk reads and decompresses a file list previously written by
// SaveToDisk.
func LoadFromDisk(path string) (Item, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return Item{}, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return Item{}, err
	}
	return DecodeBinary(raw)
}

// LoadAndSelfHeal loads the file list at path and, if its root name
// doesn't match expectedName (the share's configured name), rewrites it
// under the corrected name before returning (spec §6: "the share on
// load may detect that the on-disk internal name differs from the
// expected one and self-heal by rewriting").
func LoadAndSelfHeal(path, expectedName string) (Item, bool, error) {
	it, err := LoadFromDisk(path)
	if err != nil {
		return Item{}, false, err
	}
	if it.Name == expectedName {
		return it, false, nil
	}
	it.Name = expectedName
	if err := SaveToDisk(path, it); err != nil {
		return Item{}, false, err
	}
	return it, true, nil
}
