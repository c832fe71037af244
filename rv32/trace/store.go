package trace

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	stepPrefix = []byte("s")
	countKey   = []byte("n")
)

var ErrRecordNotFound = errors.New("trace record not found")

// LevelDBStore keeps a trace keyed by step index for random access.
// LevelDB handles its own synchronization.
type LevelDBStore struct {
	db    *leveldb.DB
	count uint64
}

// OpenLevelDBStore opens or creates a store at path; an empty path keeps
// the store in memory.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace store at %s: %w", path, err)
	}
	s := &LevelDBStore{db: db}
	v, err := db.Get(countKey, nil)
	switch {
	case err == leveldb.ErrNotFound:
	case err != nil:
		db.Close()
		return nil, err
	default:
		s.count = binary.BigEndian.Uint64(v)
	}
	return s, nil
}

func stepKey(index uint64) []byte {
	k := make([]byte, len(stepPrefix)+8)
	copy(k, stepPrefix)
	binary.BigEndian.PutUint64(k[len(stepPrefix):], index)
	return k
}

// WriteRecord stores rec under its index.
func (s *LevelDBStore) WriteRecord(rec *Record) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(stepKey(rec.Index), v)
	if rec.Index+1 > s.count {
		s.count = rec.Index + 1
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], s.count)
		batch.Put(countKey, n[:])
	}
	return s.db.Write(batch, nil)
}

func (s *LevelDBStore) Get(index uint64) (*Record, error) {
	v, err := s.db.Get(stepKey(index), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("step %d: %w", index, ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec := new(Record)
	if err := json.Unmarshal(v, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Len is one past the highest stored index.
func (s *LevelDBStore) Len() uint64 {
	return s.count
}

// Range returns the records with index in [from, to), in order.
func (s *LevelDBStore) Range(from, to uint64) ([]*Record, error) {
	iter := s.db.NewIterator(&util.Range{Start: stepKey(from), Limit: stepKey(to)}, nil)
	defer iter.Release()
	var out []*Record
	for iter.Next() {
		rec := new(Record)
		if err := json.Unmarshal(iter.Value(), rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("range %d..%d: %w", from, to, err)
	}
	return out, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
