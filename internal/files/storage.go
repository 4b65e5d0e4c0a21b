package files

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// sniffLen is how many leading bytes content-type detection reads.
const sniffLen = 512

// DiskStorage writes uploads under a single root directory. Stored
// names come from idgen, so path traversal through client input is not
// possible.
type DiskStorage struct {
	root string
}

func NewDiskStorage(root string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStorage{root: root}, nil
}

func (d *DiskStorage) path(name string) string {
	return filepath.Join(d.root, filepath.Base(name))
}

// Save streams r to disk under name, enforcing maxSize and hashing as
// it writes. It returns the byte count, sha256 checksum and detected
// content type. The partial file is removed on any failure.
func (d *DiskStorage) Save(name string, r io.Reader, maxSize int64) (int64, string, string, error) {
	dst, err := os.OpenFile(d.path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, "", "", err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		dst.Close()
		os.Remove(dst.Name())
		return 0, "", "", err
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	hasher := sha256.New()
	out := io.MultiWriter(dst, hasher)
	written, err := out.Write(head)
	if err == nil {
		var rest int64
		// +1 so an oversize stream is detected rather than truncated.
		rest, err = io.Copy(out, io.LimitReader(r, maxSize-int64(written)+1))
		written += int(rest)
		if err == nil && int64(written) > maxSize {
			err = ErrTooLarge
		}
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst.Name())
		return 0, "", "", err
	}
	return int64(written), hex.EncodeToString(hasher.Sum(nil)), contentType, nil
}

// Open returns a reader over a stored file.
func (d *DiskStorage) Open(name string) (io.ReadSeekCloser, error) {
	f, err := os.Open(d.path(name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

// Remove deletes a stored file. A missing file is not an error; the
// metadata row is authoritative.
func (d *DiskStorage) Remove(name string) error {
	err := os.Remove(d.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
