package spill

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/gofrs/uuid"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
	"github.com/go-sif/sieve/logging"
)

// Config configures a spill Manager
type Config struct {
	Dir           string
	NumPartitions int
	KeyCodec      sieve.Codec
	ValueCodec    sieve.Codec
	Compression   sieve.CompressionKind
}

// partitionFile is one partition's append-only spill file plus its run ledger
type partitionFile struct {
	file  *os.File
	path  string
	runs  int
	items int
}

// Manager serializes partitions' in-memory entries to append-only external run
// files, one file per partition, and reads them back in append order at merge
// time. Files are created lazily on first spill and removed at Dispose or after
// a successful merge. Run layout: [uvarint compressed-length][compressed
// payload], payload = [uvarint record-count][records], record = key then value
// via the configured codecs. Strictly single-writer per partition.
type Manager struct {
	conf         *Config
	comp         compressor
	parts        []*partitionFile
	runsWritten  int64
	spilledBytes int64
	disposed     bool
}

// NewManager produces a Manager writing spill files under conf.Dir
func NewManager(conf *Config) (*Manager, error) {
	if conf.NumPartitions <= 0 {
		return nil, errors.ConfigurationError{Message: "number of partitions must be greater than 0"}
	}
	if conf.KeyCodec == nil || conf.ValueCodec == nil {
		return nil, errors.ConfigurationError{Message: "spilling requires a key Codec and a value Codec"}
	}
	comp, err := createCompressor(conf.Compression)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		log.Fatalf("failed to generate UUID for spill files: %v", err)
	}
	parts := make([]*partitionFile, conf.NumPartitions)
	for i := range parts {
		parts[i] = &partitionFile{
			path: path.Join(conf.Dir, fmt.Sprintf("sieve-spill-%s-p%d", id.String(), i)),
		}
	}
	return &Manager{conf: conf, comp: comp, parts: parts}, nil
}

// An EntryIterator visits a sequence of (key, value) entries
type EntryIterator func(fn func(key interface{}, value interface{}) error) error

// AppendRun serializes one batch of entries as a new run appended to the
// partition's spill file, returning the number of records written
func (m *Manager) AppendRun(partition int, each EntryIterator) (int, error) {
	pf := m.parts[partition]
	var records bytes.Buffer
	count := 0
	err := each(func(key interface{}, value interface{}) error {
		if err := m.conf.KeyCodec.Encode(&records, key); err != nil {
			return err
		}
		if err := m.conf.ValueCodec.Encode(&records, value); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, errors.StorageError{PartitionID: partition, Err: err}
	}
	var payload bytes.Buffer
	writeUvarint(&payload, uint64(count))
	payload.Write(records.Bytes())
	compressed, err := m.comp.Compress(payload.Bytes())
	if err != nil {
		return 0, errors.StorageError{PartitionID: partition, Err: err}
	}
	if pf.file == nil {
		f, err := os.OpenFile(pf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, errors.StorageError{PartitionID: partition, Err: err}
		}
		pf.file = f
	}
	var frame bytes.Buffer
	writeUvarint(&frame, uint64(len(compressed)))
	frame.Write(compressed)
	if _, err := pf.file.Write(frame.Bytes()); err != nil {
		return 0, errors.StorageError{PartitionID: partition, Err: err}
	}
	pf.runs++
	pf.items += count
	m.runsWritten++
	m.spilledBytes += int64(frame.Len())
	if logging.Enabled(logging.DebugLevel) {
		log.Printf("Spilled run %d (%d records) for partition %d", pf.runs, count, partition)
	}
	return count, nil
}

// ReadRuns replays every record of every run of a partition, oldest run first.
// Errors returned by fn propagate unchanged; I/O and decode failures surface
// as StorageErrors.
func (m *Manager) ReadRuns(partition int, fn func(key interface{}, value interface{}) error) error {
	return m.ForEachRun(partition, func(run EntryIterator) error {
		return run(fn)
	})
}

// ForEachRun replays a partition's runs one at a time, oldest first, exposing
// run boundaries to the caller. Each run iterator is only valid within its
// callback.
func (m *Manager) ForEachRun(partition int, fn func(run EntryIterator) error) error {
	pf := m.parts[partition]
	if pf.runs == 0 {
		return nil
	}
	// spill writes and merge reads never interleave on one partition, so a
	// separate read handle over the same path sees every complete run
	f, err := os.Open(pf.path)
	if err != nil {
		return errors.StorageError{PartitionID: partition, Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Unable to close spill file %s", pf.path)
		}
	}()
	br := bufio.NewReader(f)
	for {
		frameLen, err := binary.ReadUvarint(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.StorageError{PartitionID: partition, Err: err}
		}
		compressed := make([]byte, frameLen)
		if _, err := io.ReadFull(br, compressed); err != nil {
			return errors.StorageError{PartitionID: partition, Err: err}
		}
		payload, err := m.comp.Decompress(compressed)
		if err != nil {
			return errors.StorageError{PartitionID: partition, Err: err}
		}
		records := bytes.NewReader(payload)
		count, err := binary.ReadUvarint(records)
		if err != nil {
			return errors.StorageError{PartitionID: partition, Err: err}
		}
		run := func(each func(key interface{}, value interface{}) error) error {
			for i := uint64(0); i < count; i++ {
				key, err := m.conf.KeyCodec.Decode(records)
				if err != nil {
					return errors.StorageError{PartitionID: partition, Err: err}
				}
				value, err := m.conf.ValueCodec.Decode(records)
				if err != nil {
					return errors.StorageError{PartitionID: partition, Err: err}
				}
				if err := each(key, value); err != nil {
					return err
				}
			}
			return nil
		}
		if err := fn(run); err != nil {
			return err
		}
	}
}

// RunCount returns the number of runs spilled for a partition so far
func (m *Manager) RunCount(partition int) int {
	return m.parts[partition].runs
}

// ItemsSpilled returns the total number of records spilled for a partition,
// summed over its runs. Duplicate keys across runs are counted once per run.
func (m *Manager) ItemsSpilled(partition int) int {
	return m.parts[partition].items
}

// RunsWritten returns the total number of runs ever written across all
// partitions. Unlike RunCount it is not reset by DropPartition.
func (m *Manager) RunsWritten() int64 {
	return m.runsWritten
}

// SpilledBytes returns the total number of bytes written across all partitions
func (m *Manager) SpilledBytes() int64 {
	return m.spilledBytes
}

// DropPartition closes and removes a partition's spill file once its runs have
// been fully merged
func (m *Manager) DropPartition(partition int) error {
	pf := m.parts[partition]
	pf.runs = 0
	pf.items = 0
	if pf.file == nil {
		return nil
	}
	if err := pf.closeAndRemove(); err != nil {
		return errors.StorageError{PartitionID: partition, Err: err}
	}
	return nil
}

// Dispose releases every spill file. Safe to call from any state, idempotent,
// releases each file handle at most once.
func (m *Manager) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	for _, pf := range m.parts {
		if pf.file == nil {
			continue
		}
		if err := pf.closeAndRemove(); err != nil {
			log.Printf("Unable to remove spill file %s: %v", pf.path, err)
		}
	}
}

// closeAndRemove releases the partition's append handle exactly once and
// deletes the file
func (pf *partitionFile) closeAndRemove() error {
	cerr := pf.file.Close()
	pf.file = nil
	rerr := os.Remove(pf.path)
	if cerr != nil {
		return cerr
	}
	return rerr
}

func writeUvarint(w *bytes.Buffer, x uint64) {
	var buff [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buff[:], x)
	w.Write(buff[:n])
}
