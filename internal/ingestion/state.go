package ingestion

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/codegraph/codegraph-go/internal/models"
)

var (
	bucketFiles      = []byte("files")
	bucketCandidates = []byte("candidates")
	bucketMeta       = []byte("meta")
	keyGeneration    = []byte("generation")
)

// FileRecord is one file's last-indexed state.
type FileRecord struct {
	Hash       uint64 `json:"hash"`
	Generation uint64 `json:"generation"`
	Language   string `json:"language"`
	Size       int64  `json:"size"`
}

// fileCandidates is the cached extraction for one file. Unchanged files
// feed resolution from this cache instead of being re-parsed, which keeps
// the symbol table complete across incremental runs.
type fileCandidates struct {
	Entities      []models.CandidateEntity       `json:"entities"`
	Relationships []models.CandidateRelationship `json:"relationships"`
}

// StateStore persists per-file hashes, generations, and cached extraction
// results between runs. Local embedded storage: the graph store holds the
// truth, this is just the diff baseline.
type StateStore struct {
	db *bolt.DB
}

// OpenState opens (or creates) the state database at path.
func OpenState(path string) (*StateStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFiles, bucketCandidates, bucketMeta} {
			if _, berr := tx.CreateBucketIfNotExists(name); berr != nil {
				return berr
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init state buckets: %w", err)
	}
	return &StateStore{db: db}, nil
}

func (s *StateStore) Close() error { return s.db.Close() }

// Generation returns the last completed generation, zero for a fresh store.
func (s *StateStore) Generation() (uint64, error) {
	var gen uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyGeneration); len(v) == 8 {
			gen = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	return gen, err
}

// SetGeneration records the generation of the last successful run.
func (s *StateStore) SetGeneration(gen uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], gen)
		return tx.Bucket(bucketMeta).Put(keyGeneration, buf[:])
	})
}

// Snapshot loads every file record.
func (s *StateStore) Snapshot() (map[string]FileRecord, error) {
	records := map[string]FileRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var rec FileRecord
			if jerr := json.Unmarshal(v, &rec); jerr != nil {
				return fmt.Errorf("decode record for %s: %w", k, jerr)
			}
			records[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PutFile stores one file's record and cached candidates in a single
// transaction.
func (s *StateStore) PutFile(path string, rec FileRecord, entities []models.CandidateEntity, rels []models.CandidateRelationship) error {
	recBytes, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	candBytes, err := json.Marshal(fileCandidates{Entities: entities, Relationships: rels})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if perr := tx.Bucket(bucketFiles).Put([]byte(path), recBytes); perr != nil {
			return perr
		}
		return tx.Bucket(bucketCandidates).Put([]byte(path), candBytes)
	})
}

// Candidates loads the cached extraction for one file.
func (s *StateStore) Candidates(path string) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	var fc fileCandidates
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCandidates).Get([]byte(path))
		if v == nil {
			return fmt.Errorf("no cached candidates for %s", path)
		}
		return json.Unmarshal(v, &fc)
	})
	if err != nil {
		return nil, nil, err
	}
	return fc.Entities, fc.Relationships, nil
}

// DeleteFiles drops records and caches for removed paths.
func (s *StateStore) DeleteFiles(paths []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket(bucketFiles)
		cands := tx.Bucket(bucketCandidates)
		for _, p := range paths {
			if err := files.Delete([]byte(p)); err != nil {
				return err
			}
			if err := cands.Delete([]byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rename moves a file's record and cache to a new path, keeping the cached
// candidates. The graph side is handled by the writer's rename phase.
func (s *StateStore) Rename(oldPath, newPath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketFiles, bucketCandidates} {
			b := tx.Bucket(bucket)
			v := b.Get([]byte(oldPath))
			if v == nil {
				continue
			}
			if err := b.Put([]byte(newPath), v); err != nil {
				return err
			}
			if err := b.Delete([]byte(oldPath)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset clears all state, used by the clean path.
func (s *StateStore) Reset() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFiles, bucketCandidates, bucketMeta} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
