package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

const recordHeaderLen = 12

// FileJournal is an append-only on-disk log of output event batches.
// The commit watermark lives in a sidecar meta file; entries past the
// watermark are considered undelivered and get replayed on reopen.
type FileJournal struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.JournalEntryID
	committed ports.JournalEntryID
	sizeBytes int64
}

func NewFileJournal(dir string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "events.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	j := &FileJournal{
		path:     path,
		metaPath: filepath.Join(dir, "events.meta"),
		file:     f,
		writer:   bufio.NewWriterSize(f, 1<<20),
	}
	if err := j.bootstrap(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *FileJournal) bootstrap() error {
	if err := j.scanExisting(); err != nil {
		return err
	}
	if err := j.loadCommitted(); err != nil {
		return err
	}
	if j.nextID < j.committed {
		j.nextID = j.committed
	}
	_, err := j.file.Seek(0, io.SeekEnd)
	return err
}

// scanExisting walks the log to find the last complete record, truncating
// any partial tail left by a crash mid-write.
func (j *FileJournal) scanExisting() error {
	stat, err := os.Stat(j.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err != nil || stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID ports.JournalEntryID
	)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				if err := j.file.Truncate(offset); err != nil {
					return err
				}
				break
			}
			return fmt.Errorf("journal scan header: %w", err)
		}
		id := ports.JournalEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])
		offset += recordHeaderLen

		if length > 0 {
			if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					if err := j.file.Truncate(offset); err != nil {
						return err
					}
					break
				}
				return fmt.Errorf("journal scan body: %w", err)
			}
			offset += int64(length)
		}
		lastID = id
	}

	if err := j.file.Truncate(offset); err != nil {
		return err
	}
	j.sizeBytes = offset
	j.nextID = lastID
	return nil
}

func (j *FileJournal) loadCommitted() error {
	data, err := os.ReadFile(j.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("journal meta parse: %w", err)
	}
	j.committed = ports.JournalEntryID(u)
	return nil
}

func (j *FileJournal) Append(events []domain.OutputEvent) (ports.JournalEntryID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextID + 1

	b, err := json.Marshal(events)
	if err != nil {
		return 0, err
	}

	// entry format: [8 bytes id][4 bytes len][len bytes json]
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(b); err != nil {
		return 0, err
	}

	j.nextID = id
	j.sizeBytes += int64(len(b) + len(hdr))

	return id, nil
}

func (j *FileJournal) Iterate(from ports.JournalEntryID, fn func(id ports.JournalEntryID, events []domain.OutputEvent) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}

	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("journal iterate header: %w", err)
		}
		id := ports.JournalEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt journal: %w", err)
		}
		if id < from {
			continue
		}

		var events []domain.OutputEvent
		if err := json.Unmarshal(b, &events); err != nil {
			return fmt.Errorf("corrupt journal entry: %w", err)
		}
		if err := fn(id, events); err != nil {
			return err
		}
	}
}

func (j *FileJournal) Commit(upto ports.JournalEntryID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if upto > j.committed {
		j.committed = upto
	}
	return j.persistMetaLocked()
}

func (j *FileJournal) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", j.committed))
	return os.WriteFile(j.metaPath, data, 0o644)
}

func (j *FileJournal) Stats() ports.JournalStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ports.JournalStats{
		OldestUncommitted: j.committed + 1,
		LatestAppended:    j.nextID,
		SizeBytes:         j.sizeBytes,
	}
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

var _ ports.Journal = (*FileJournal)(nil)
