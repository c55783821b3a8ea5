// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// blobMagic identifies a Roadlog blob file. The trailing digit is the
// header version.
var blobMagic = [4]byte{'R', 'B', 'L', '1'}

// headerSize is the fixed on-disk header in front of the payload:
// magic (4) + compression tag (1) + reserved (3) + uncompressed size
// (8) + BLAKE3 checksum of the uncompressed value (32).
const headerSize = 48

// checksumKey is the BLAKE3 key for blob integrity checksums. Domain
// separated from lock hashing.
var checksumKey = [32]byte{
	'r', 'o', 'a', 'd', 'l', 'o', 'g', '.', 'b', 'l', 'o', 'b', 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func checksum(value []byte) [32]byte {
	hasher, err := blake3.NewKeyed(checksumKey[:])
	if err != nil {
		panic("blobstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(value)
	var sum [32]byte
	_, _ = hasher.Digest().Read(sum[:])
	return sum
}

// Filesystem is a Store backed by a local directory tree. Each key
// maps to one file under the root; slashes in keys become
// subdirectories. Writes are atomic (temp file + rename), so a
// concurrent reader sees either the old value or the new one, never a
// torn write.
type Filesystem struct {
	root string
}

// NewFilesystem creates (if needed) and opens a filesystem store
// rooted at dir.
func NewFilesystem(dir string) (*Filesystem, error) {
	if dir == "" {
		return nil, fmt.Errorf("blobstore: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: creating root %s: %w", dir, err)
	}
	return &Filesystem{root: dir}, nil
}

// path maps a key to its file path, rejecting keys that would escape
// the root.
func (f *Filesystem) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blobstore: invalid key %q", key)
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

// Put stores value at key. The value is compressed according to
// contentType and wrapped in a checksummed header.
func (f *Filesystem) Put(ctx context.Context, key string, value []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := f.path(key)
	if err != nil {
		return err
	}

	stored, tag, err := compress(value, selectCompression(value, contentType))
	if err != nil {
		return fmt.Errorf("blobstore: compressing %s: %w", key, err)
	}

	header := make([]byte, headerSize)
	copy(header[0:4], blobMagic[:])
	header[4] = byte(tag)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(value)))
	sum := checksum(value)
	copy(header[16:48], sum[:])

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("blobstore: creating directory for %s: %w", key, err)
	}

	temp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return fmt.Errorf("blobstore: creating temp file for %s: %w", key, err)
	}
	tempName := temp.Name()
	if _, err := temp.Write(header); err == nil {
		_, err = temp.Write(stored)
	}
	if closeErr := temp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("blobstore: writing %s: %w", key, err)
	}
	if err := os.Rename(tempName, target); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("blobstore: committing %s: %w", key, err)
	}
	return nil
}

// Get returns the value at key, verifying its checksum.
func (f *Filesystem) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := f.path(key)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("blobstore: reading %s: %w", key, err)
	}

	tag, size, wantSum, payload, err := parseHeader(key, raw)
	if err != nil {
		return nil, err
	}

	value, err := decompress(payload, tag, size)
	if err != nil {
		return nil, fmt.Errorf("blobstore: %s: %w", key, err)
	}
	if checksum(value) != wantSum {
		return nil, fmt.Errorf("blobstore: %s: checksum mismatch", key)
	}
	return value, nil
}

// Head returns the logical (uncompressed) size of the value at key.
// Only the header is read.
func (f *Filesystem) Head(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	target, err := f.path(key)
	if err != nil {
		return 0, err
	}

	file, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return 0, fmt.Errorf("blobstore: opening %s: %w", key, err)
	}
	defer file.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return 0, fmt.Errorf("blobstore: reading header of %s: %w", key, err)
	}
	if !bytes.Equal(header[0:4], blobMagic[:]) {
		return 0, fmt.Errorf("blobstore: %s: bad magic", key)
	}
	return int64(binary.LittleEndian.Uint64(header[8:16])), nil
}

// List returns all keys under prefix in lexical order. Temp files
// from in-flight Puts are excluded.
func (f *Filesystem) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(f.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		if strings.HasPrefix(entry.Name(), ".put-") {
			return nil
		}
		relative, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relative)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: listing %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func parseHeader(key string, raw []byte) (compressionTag, int, [32]byte, []byte, error) {
	var sum [32]byte
	if len(raw) < headerSize {
		return 0, 0, sum, nil, fmt.Errorf("blobstore: %s: short blob (%d bytes)", key, len(raw))
	}
	if !bytes.Equal(raw[0:4], blobMagic[:]) {
		return 0, 0, sum, nil, fmt.Errorf("blobstore: %s: bad magic", key)
	}
	tag := compressionTag(raw[4])
	size := int(binary.LittleEndian.Uint64(raw[8:16]))
	copy(sum[:], raw[16:48])
	return tag, size, sum, raw[headerSize:], nil
}
