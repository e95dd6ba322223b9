// Package rdb implements the length-encoded binary snapshot format used
// to bootstrap and periodically persist the keyspace. It supports a
// subset of the real on-disk RDB layout: string values only, optional
// per-key expiry, and the three general length-encoding forms plus the
// integer-packed special forms on read (LZF on read is rejected, never
// produced on write).
package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/onestore/picokv/store"
)

// ErrUnsupportedEncoding is returned (often wrapped) when the file uses
// a length-encoding form or value type this codec does not implement.
var ErrUnsupportedEncoding = errors.New("rdb: unsupported encoding")

// ErrBadSnapshot wraps any I/O or format failure encountered while
// reading or writing a snapshot file. Per the propagation policy, a
// missing file on load is NOT an error and never produces this.
var ErrBadSnapshot = errors.New("rdb: unable to parse/write snapshot")

const (
	magic         = "REDIS"
	writerVersion = "0006"
	maxVersion    = 11

	opAux       = 0xFA
	opExpireMS  = 0xFC
	opExpireSec = 0xFD
	opSelectDB  = 0xFE
	opResizeDB  = 0xFB
	opEOF       = 0xFF

	valueTypeString = 0x00
)

// Load reads the snapshot file at path into a fresh set of entries. A
// missing file is not an error; it returns an empty, non-nil map so
// callers can treat "no snapshot yet" and "empty snapshot" identically.
func Load(path string) (map[string]store.Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]store.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrBadSnapshot, path, err)
	}
	defer f.Close()

	entries, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadSnapshot, path, err)
	}
	return entries, nil
}

// Save writes entries to path, truncating any existing file. The whole
// snapshot is encoded in memory first and written to the file in one
// call at the end of the save; the file is not touched if encoding
// fails. A crash mid-write can still leave a truncated file.
func Save(path string, entries map[string]store.Entry) error {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := encode(w, entries); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadSnapshot, path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush %s: %v", ErrBadSnapshot, path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o666); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrBadSnapshot, path, err)
	}
	return nil
}

func decode(r *bufio.Reader) (map[string]store.Entry, error) {
	if err := readMagicAndVersion(r); err != nil {
		return nil, err
	}

	entries := make(map[string]store.Entry)
	var pendingExpiry time.Time
	var hasPendingExpiry bool

	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read opcode: %w", err)
		}

		switch op {
		case opEOF:
			return entries, nil

		case opSelectDB:
			var buf [4]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, fmt.Errorf("read db selector: %w", err)
			}

		case opResizeDB:
			if _, _, _, err := readLength(r); err != nil {
				return nil, fmt.Errorf("read hash size (entries): %w", err)
			}
			if _, _, _, err := readLength(r); err != nil {
				return nil, fmt.Errorf("read hash size (expires): %w", err)
			}

		case opAux:
			if _, err := readString(r); err != nil {
				return nil, fmt.Errorf("read aux key: %w", err)
			}
			if _, err := readString(r); err != nil {
				return nil, fmt.Errorf("read aux value: %w", err)
			}

		case opExpireMS:
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, fmt.Errorf("read ms expiry: %w", err)
			}
			ms := binary.LittleEndian.Uint64(buf[:])
			pendingExpiry = time.UnixMilli(int64(ms))
			hasPendingExpiry = true

		case opExpireSec:
			var buf [4]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, fmt.Errorf("read sec expiry: %w", err)
			}
			sec := binary.LittleEndian.Uint32(buf[:])
			pendingExpiry = time.Unix(int64(sec), 0)
			hasPendingExpiry = true

		case valueTypeString:
			key, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("read key: %w", err)
			}
			val, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("read value: %w", err)
			}
			entries[key] = store.Entry{
				Value:     []byte(val),
				Expiry:    pendingExpiry,
				HasExpiry: hasPendingExpiry,
			}
			pendingExpiry = time.Time{}
			hasPendingExpiry = false

		default:
			return nil, fmt.Errorf("%w: value type 0x%02x", ErrUnsupportedEncoding, op)
		}
	}
}

func readMagicAndVersion(r *bufio.Reader) error {
	hdr := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if string(hdr[:len(magic)]) != magic {
		return fmt.Errorf("bad magic %q", hdr[:len(magic)])
	}
	version, err := strconv.Atoi(string(hdr[len(magic):]))
	if err != nil {
		return fmt.Errorf("bad version %q: %w", hdr[len(magic):], err)
	}
	if version > maxVersion {
		return fmt.Errorf("unsupported version %d (max %d)", version, maxVersion)
	}
	return nil
}

func encode(w *bufio.Writer, entries map[string]store.Entry) error {
	if _, err := w.WriteString(magic + writerVersion); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := w.WriteByte(opSelectDB); err != nil {
		return err
	}
	var dbIdx [4]byte
	if _, err := w.Write(dbIdx[:]); err != nil {
		return fmt.Errorf("write db selector: %w", err)
	}

	if err := w.WriteByte(opResizeDB); err != nil {
		return err
	}
	expiring := 0
	for _, e := range entries {
		if e.HasExpiry {
			expiring++
		}
	}
	if err := writeLength(w, uint64(len(entries))); err != nil {
		return fmt.Errorf("write entry count: %w", err)
	}
	if err := writeLength(w, uint64(expiring)); err != nil {
		return fmt.Errorf("write expiring count: %w", err)
	}

	for key, e := range entries {
		if e.HasExpiry {
			if err := w.WriteByte(opExpireMS); err != nil {
				return err
			}
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(e.Expiry.UnixMilli()))
			if _, err := w.Write(buf[:]); err != nil {
				return fmt.Errorf("write expiry: %w", err)
			}
		}

		if err := w.WriteByte(valueTypeString); err != nil {
			return err
		}
		if err := writeString(w, key); err != nil {
			return fmt.Errorf("write key %q: %w", key, err)
		}
		if err := writeString(w, string(e.Value)); err != nil {
			return fmt.Errorf("write value for key %q: %w", key, err)
		}
	}

	return w.WriteByte(opEOF)
}
