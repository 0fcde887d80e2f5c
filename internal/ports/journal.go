package ports

import "github.com/and-elf/layered-queue-driver-sub000/internal/domain"

type JournalEntryID uint64

// Journal durably records output event batches before they reach the
// dispatcher. Entries are committed once the dispatcher accepts them;
// anything uncommitted after a restart is replayed.
type Journal interface {
	Append(events []domain.OutputEvent) (JournalEntryID, error)
	Iterate(from JournalEntryID, fn func(id JournalEntryID, events []domain.OutputEvent) error) error
	Commit(upto JournalEntryID) error
	Stats() JournalStats
	Close() error
}

type JournalStats struct {
	OldestUncommitted JournalEntryID
	LatestAppended    JournalEntryID
	SizeBytes         int64
}
