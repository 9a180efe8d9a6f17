package filelist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/bs2609/fs2/internal/wire"
)

// binary "FILELIST" stream layout (spec §6):
//
//	name-len(uint16) name-bytes
//	is-dir(byte)
//	if file: size(int64) lastModified-unix-nanos(int64) hashVersion(byte)
//	         hash-len(byte) hash-bytes
//	if dir:  size(int64) fileCount(uint32) child-count(uint32) children...
//
// The explicit hash-len byte lets the format evolve hash width without
// breaking decode of older entries, even though today FileDigestBytes is
// fixed; it mirrors the teacher's own tendency (see backend/chunker's
// metadata objects) to version-tag binary blobs it owns end to end.
const magic = "FS2FL1\x00"

var errTruncated = errors.New("filelist: truncated binary stream")

// EncodeBinary renders root as the compact FILELIST binary format.
func EncodeBinary(root Item) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	if err := encodeItem(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeItem(w *bytes.Buffer, it Item) error {
	if len(it.Name) > 0xFFFF {
		return errors.New("filelist: name too long")
	}
	writeUint16(w, uint16(len(it.Name)))
	w.WriteString(it.Name)

	if it.IsDir() {
		w.WriteByte(1)
		writeInt64(w, it.Size)
		writeUint32(w, uint32(it.FileCount))
		writeUint32(w, uint32(len(it.Children)))
		for _, c := range it.Children {
			if err := encodeItem(w, c); err != nil {
				return err
			}
		}
		return nil
	}

	w.WriteByte(0)
	writeInt64(w, it.Size)
	writeInt64(w, it.LastModified.UTC().UnixNano())
	w.WriteByte(byte(it.HashVersion))
	w.WriteByte(byte(len(it.Hash)))
	w.Write(it.Hash[:])
	return nil
}

// DecodeBinary parses a FILELIST binary stream produced by EncodeBinary.
func DecodeBinary(data []byte) (Item, error) {
	r := bytes.NewReader(data)
	got := make([]byte, len(magic))
	if _, err := io.ReadFull(r, got); err != nil || string(got) != magic {
		return Item{}, errors.New("filelist: bad magic")
	}
	return decodeItem(r)
}

func decodeItem(r *bytes.Reader) (Item, error) {
	nameLen, err := readUint16(r)
	if err != nil {
		return Item{}, err
	}
	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return Item{}, errTruncated
	}
	it := Item{Name: string(nameBuf)}

	isDir, err := r.ReadByte()
	if err != nil {
		return Item{}, errTruncated
	}

	if isDir == 1 {
		size, err := readInt64(r)
		if err != nil {
			return Item{}, err
		}
		fileCount, err := readUint32(r)
		if err != nil {
			return Item{}, err
		}
		childCount, err := readUint32(r)
		if err != nil {
			return Item{}, err
		}
		it.Size = size
		it.FileCount = int(fileCount)
		it.Children = make([]Item, childCount)
		for i := range it.Children {
			child, err := decodeItem(r)
			if err != nil {
				return Item{}, err
			}
			it.Children[i] = child
		}
		return it, nil
	}

	size, err := readInt64(r)
	if err != nil {
		return Item{}, err
	}
	modNanos, err := readInt64(r)
	if err != nil {
		return Item{}, err
	}
	hv, err := r.ReadByte()
	if err != nil {
		return Item{}, errTruncated
	}
	hashLen, err := r.ReadByte()
	if err != nil {
		return Item{}, errTruncated
	}
	if int(hashLen) != wire.FileDigestBytes {
		return Item{}, wire.ErrBadHashLength
	}
	hashBuf := make([]byte, hashLen)
	if _, err := io.ReadFull(r, hashBuf); err != nil {
		return Item{}, errTruncated
	}

	it.Size = size
	it.LastModified = time.Unix(0, modNanos).UTC()
	it.HashVersion = wire.HashVersion(hv)
	copy(it.Hash[:], hashBuf)
	return it, nil
}

func writeUint16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeInt64(w *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.Write(b[:])
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errTruncated
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errTruncated
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errTruncated
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}
