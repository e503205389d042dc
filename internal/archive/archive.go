package archive

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Store is an append-mostly archive of raw item JSON, keyed for the lookups
// the dashboard and ad hoc digging need: by id, by author, by UTC day. The
// relational mirror keeps the queryable columns; this keeps everything the
// API returned, including fields the schema does not model.
type Store struct {
	db *badger.DB
}

// Record is one archived item.
type Record struct {
	Type string // "post" or "comment"
	ID   string
	Raw  []byte
}

// Open opens (or creates) the archive at dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

func itemKey(itemType, id string) []byte {
	return []byte("item:" + itemType + ":" + id)
}

// Put archives one item and its index entries. Re-archiving an id simply
// overwrites, so a fresh pull refreshes scores and edit state.
func (s *Store) Put(itemType, id, author, day string, raw []byte) error {
	ref := []byte(itemType + ":" + id)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(itemKey(itemType, id), raw); err != nil {
			return err
		}
		if err := txn.Set([]byte("day:"+day+":"+itemType+":"+id), ref); err != nil {
			return err
		}
		if author != "" {
			if err := txn.Set([]byte("author:"+author+":"+itemType+":"+id), ref); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the raw JSON for an item, or nil if it was never archived.
func (s *Store) Get(itemType, id string) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(itemKey(itemType, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	return raw, err
}

// ByDay returns every item archived for a UTC day (YYYY-MM-DD).
func (s *Store) ByDay(day string) ([]Record, error) {
	return s.byIndex("day:" + day + ":")
}

// ByAuthor returns every item archived for an author.
func (s *Store) ByAuthor(author string) ([]Record, error) {
	return s.byIndex("author:" + author + ":")
}

// byIndex walks an index prefix and resolves each reference to its item.
func (s *Store) byIndex(prefix string) ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ref, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			itemType, id, ok := strings.Cut(string(ref), ":")
			if !ok {
				return fmt.Errorf("malformed index reference %q", ref)
			}
			item, err := txn.Get(itemKey(itemType, id))
			if err == badger.ErrKeyNotFound {
				continue // index entry outlived its item
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			records = append(records, Record{Type: itemType, ID: id, Raw: raw})
		}
		return nil
	})
	return records, err
}

// Each walks every archived item. The callback's raw slice is only valid for
// the duration of the call.
func (s *Store) Each(fn func(r Record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("item:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, "item:")
			itemType, id, ok := strings.Cut(rest, ":")
			if !ok {
				return fmt.Errorf("malformed item key %q", key)
			}
			err := it.Item().Value(func(raw []byte) error {
				return fn(Record{Type: itemType, ID: id, Raw: raw})
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of archived items.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("item:")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
