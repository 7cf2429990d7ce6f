// Package store persists analyzed batches in an embedded BadgerDB so they
// can be listed and re-exported later.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/imyousuf/megaparser/internal/model"
)

// Key prefixes for the BadgerDB key scheme.
const (
	prefixArchive = "a:"
	prefixIdxTime = "idx:time:"
)

// ErrNotFound is returned for an archive id that is not stored.
var ErrNotFound = errors.New("archive not found")

// Archive is one stored analysis batch.
type Archive struct {
	ID        string             `json:"id"`
	Project   string             `json:"project"`
	CreatedAt time.Time          `json:"created_at"`
	Files     []model.FileObject `json:"files"`
}

// Summary describes an archive without its files.
type Summary struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
	FileCount int       `json:"file_count"`
}

// Store is a BadgerDB-backed archive store.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) a store at dbPath.
func Open(dbPath string) (*Store, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // suppress badger logs
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenInMemory opens a store that keeps everything in memory.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func archiveKey(id string) []byte { return []byte(prefixArchive + id) }

// timeKey sorts lexically in creation order: the timestamp is zero padded.
func timeKey(created time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixIdxTime, created.UnixNano(), id))
}

// newArchiveID derives a short id from the project and creation time.
func newArchiveID(project string, created time.Time) string {
	h := sha256.Sum256([]byte(project + "\x00" + strconv.FormatInt(created.UnixNano(), 10)))
	return hex.EncodeToString(h[:8])
}

// Save stores files as a new archive of project and returns its id.
func (s *Store) Save(_ context.Context, project string, files []model.FileObject) (string, error) {
	created := s.now().UTC()
	a := Archive{
		ID:        newArchiveID(project, created),
		Project:   project,
		CreatedAt: created,
		Files:     files,
	}
	if a.Files == nil {
		a.Files = []model.FileObject{}
	}

	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal archive: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(archiveKey(a.ID), data); err != nil {
			return err
		}
		return txn.Set(timeKey(created, a.ID), []byte(strconv.Itoa(len(a.Files))+":"+project))
	})
	if err != nil {
		return "", fmt.Errorf("save archive: %w", err)
	}
	return a.ID, nil
}

// Load returns the archive stored under id.
func (s *Store) Load(_ context.Context, id string) (*Archive, error) {
	var a Archive
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(archiveKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("get archive %s: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns a summary of every archive, oldest first.
func (s *Store) List(_ context.Context) ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixIdxTime)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			item := it.Item()
			// Key format: idx:time:<unixnano>:<id>
			rest := strings.TrimPrefix(string(item.Key()), prefixIdxTime)
			tsPart, id, ok := strings.Cut(rest, ":")
			if !ok {
				continue
			}
			ns, err := strconv.ParseInt(tsPart, 10, 64)
			if err != nil {
				continue
			}

			sum := Summary{ID: id, CreatedAt: time.Unix(0, ns).UTC()}
			err = item.Value(func(val []byte) error {
				count, project, _ := strings.Cut(string(val), ":")
				sum.FileCount, _ = strconv.Atoi(count)
				sum.Project = project
				return nil
			})
			if err != nil {
				return err
			}
			out = append(out, sum)
		}
		return nil
	})
	return out, err
}

// Delete removes the archive stored under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	a, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(timeKey(a.CreatedAt, id)); err != nil {
			return err
		}
		return txn.Delete(archiveKey(id))
	})
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
