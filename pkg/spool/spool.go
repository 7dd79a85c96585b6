// Package spool buffers turns that could not reach the store and replays
// them later.
//
// The log is append-only with length-prefixed records, fsync'd per append,
// so a crash mid-write loses at most the record being written. A separate
// watermark file records the last consumed sequence number; it is written
// with a temp file and rename so it is never observed half-written. The two
// files together make replay idempotent: entries at or below the watermark
// are never consumed twice, and sequence numbers stay monotonic even after
// the log is truncated.
package spool

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/loamhq/loam/pkg/turn"
)

// Record layout: uint64 seq | uint32 len | payload | uint32 crc32, all
// big-endian. The CRC covers the payload only.
const (
	headerSize  = 12
	trailerSize = 4

	// maxPayload bounds a record's declared length so a corrupt header
	// cannot make the reader allocate gigabytes.
	maxPayload = 16 << 20
)

// Entry is one record read back from the log.
type Entry struct {
	Seq     uint64
	Payload []byte

	// Corrupt marks a structurally complete record whose CRC does not
	// match its payload. Corrupt entries are quarantined at replay time.
	Corrupt bool

	// raw is the full on-disk record, preserved for quarantine.
	raw []byte
}

// Spool owns the log, watermark, and quarantine files for one .loam/
// directory.
type Spool struct {
	mu sync.Mutex

	logPath        string
	watermarkPath  string
	quarantinePath string

	f         *os.File
	lastSeq   uint64
	watermark uint64

	logger *slog.Logger
}

// Open opens (creating if necessary) the spool files. A partially-written
// tail record left by a crash is truncated away.
func Open(logPath, watermarkPath, quarantinePath string, logger *slog.Logger) (*Spool, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Spool{
		logPath:        logPath,
		watermarkPath:  watermarkPath,
		quarantinePath: quarantinePath,
		logger:         logger,
	}

	wm, err := loadWatermark(watermarkPath)
	if err != nil {
		return nil, err
	}
	s.watermark = wm

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening spool log: %w", err)
	}
	s.f = f

	if err := s.recover(); err != nil {
		f.Close()
		return nil, err
	}

	return s, nil
}

// recover scans the log, records the last complete sequence number, and
// truncates any partial tail record.
func (s *Spool) recover() error {
	entries, good, err := readEntries(s.f)
	if err != nil {
		return err
	}

	info, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("statting spool log: %w", err)
	}

	if good < info.Size() {
		s.logger.Warn("truncating partial spool record",
			"path", s.logPath, "offset", good, "size", info.Size())
		if err := s.f.Truncate(good); err != nil {
			return fmt.Errorf("truncating spool log: %w", err)
		}
	}

	if len(entries) > 0 {
		s.lastSeq = entries[len(entries)-1].Seq
	}

	if _, err := s.f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seeking spool log: %w", err)
	}

	return nil
}

// Append writes a redacted turn to the log and syncs it to disk. The
// assigned sequence number is returned.
func (s *Spool) Append(t *turn.Turn) (uint64, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("encoding spooled turn: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.lastSeq
	if s.watermark > seq {
		seq = s.watermark
	}
	seq++

	record := make([]byte, headerSize+len(payload)+trailerSize)
	binary.BigEndian.PutUint64(record[0:8], seq)
	binary.BigEndian.PutUint32(record[8:12], uint32(len(payload)))
	copy(record[headerSize:], payload)
	binary.BigEndian.PutUint32(record[headerSize+len(payload):], crc32.ChecksumIEEE(payload))

	if _, err := s.f.Write(record); err != nil {
		return 0, fmt.Errorf("appending spool record: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return 0, fmt.Errorf("syncing spool log: %w", err)
	}

	s.lastSeq = seq

	return seq, nil
}

// Pending returns the entries with seq above the watermark, oldest first.
func (s *Spool) Pending() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pendingLocked()
}

func (s *Spool) pendingLocked() ([]Entry, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking spool log: %w", err)
	}
	defer s.f.Seek(0, io.SeekEnd) //nolint:errcheck

	entries, _, err := readEntries(s.f)
	if err != nil {
		return nil, err
	}

	out := entries[:0:0]
	for _, e := range entries {
		if e.Seq > s.watermark {
			out = append(out, e)
		}
	}

	return out, nil
}

// PendingCount reports how many entries await replay.
func (s *Spool) PendingCount() (int, error) {
	entries, err := s.Pending()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// QuarantinedCount reports how many records sit in the quarantine file.
func (s *Spool) QuarantinedCount() (int, error) {
	f, err := os.Open(s.quarantinePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("opening quarantine file: %w", err)
	}
	defer f.Close()

	entries, _, err := readEntries(f)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Watermark returns the last consumed sequence number.
func (s *Spool) Watermark() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// advance persists a new watermark. Called only after the entry's effects
// are durable in the store (or the entry has been quarantined).
func (s *Spool) advance(seq uint64) error {
	if err := storeWatermark(s.watermarkPath, seq); err != nil {
		return err
	}
	s.watermark = seq
	return nil
}

// quarantine appends an entry's raw record to the quarantine file and moves
// the watermark past it.
func (s *Spool) quarantine(e Entry) error {
	q, err := os.OpenFile(s.quarantinePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening quarantine file: %w", err)
	}
	defer q.Close()

	if _, err := q.Write(e.raw); err != nil {
		return fmt.Errorf("writing quarantine record: %w", err)
	}
	if err := q.Sync(); err != nil {
		return fmt.Errorf("syncing quarantine file: %w", err)
	}

	s.logger.Warn("quarantined corrupt spool entry", "seq", e.Seq, "bytes", len(e.raw))

	return s.advance(e.Seq)
}

// truncate resets the log once every entry has been consumed. The watermark
// value persists so sequence numbering continues monotonically.
func (s *Spool) truncate() error {
	if err := s.f.Truncate(0); err != nil {
		return fmt.Errorf("truncating spool log: %w", err)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking spool log: %w", err)
	}
	s.lastSeq = 0
	return nil
}

// Close closes the log file.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// readEntries scans complete records from r, returning them along with the
// offset of the last complete record's end. A short read at the tail stops
// the scan without error; the caller decides whether to truncate.
func readEntries(r io.Reader) ([]Entry, int64, error) {
	var entries []Entry
	var good int64

	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return entries, good, nil
			}
			return nil, 0, fmt.Errorf("reading spool record header: %w", err)
		}

		seq := binary.BigEndian.Uint64(header[0:8])
		length := binary.BigEndian.Uint32(header[8:12])
		if length > maxPayload {
			// Nonsense header: treat everything from here on as a
			// damaged tail.
			return entries, good, nil
		}

		body := make([]byte, int(length)+trailerSize)
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return entries, good, nil
			}
			return nil, 0, fmt.Errorf("reading spool record body: %w", err)
		}

		payload := body[:length]
		want := binary.BigEndian.Uint32(body[length:])

		raw := make([]byte, 0, headerSize+len(body))
		raw = append(raw, header...)
		raw = append(raw, body...)

		entries = append(entries, Entry{
			Seq:     seq,
			Payload: payload,
			Corrupt: crc32.ChecksumIEEE(payload) != want,
			raw:     raw,
		})
		good += int64(headerSize + len(body))
	}
}

type watermarkFile struct {
	Seq uint64 `json:"seq"`
}

func loadWatermark(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading watermark: %w", err)
	}

	var wf watermarkFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return 0, fmt.Errorf("parsing watermark: %w", err)
	}

	return wf.Seq, nil
}

// storeWatermark writes the watermark atomically via temp file and rename.
func storeWatermark(path string, seq uint64) error {
	data, err := json.Marshal(watermarkFile{Seq: seq})
	if err != nil {
		return fmt.Errorf("encoding watermark: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".watermark-*")
	if err != nil {
		return fmt.Errorf("creating watermark temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing watermark: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("syncing watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing watermark temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming watermark: %w", err)
	}

	return nil
}
