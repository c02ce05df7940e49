package provenance

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/hashing"
)

// Record is the persisted provenance of one page build.
type Record struct {
	PagePath     string        `json:"page_path"`
	Inputs       []InputRecord `json:"inputs"`
	OutputHash   hashing.Hash  `json:"output_hash"`
	CreatedAt    time.Time     `json:"created_at"`
	BuildID      string        `json:"build_id,omitempty"`
	CombinedHash hashing.Hash  `json:"combined_hash"`
}

// Provenance reconstructs the record's provenance view.
func (r *Record) Provenance() *Provenance {
	return &Provenance{Inputs: r.Inputs}
}

// StoreStats summarizes the store contents.
type StoreStats struct {
	PagesTracked     int
	SubvenanceHashes int
	InputReferences  int
}

// Store persists one Record per page under records/ and the inverse index
// in subvenance.json. In-memory state is guarded by a single mutex;
// Store() admits concurrent callers during the render phase.
type Store struct {
	fs   afero.Fs
	dir  string
	mu   sync.Mutex
	recs map[string]*Record
	// input hash -> set of page ids
	subvenance map[hashing.Hash]map[string]struct{}
	dirty      map[string]bool
	indexDirty bool
	loaded     bool
}

// Open creates a store rooted at dir. Existing records load lazily on
// first access; corrupt files are treated as absent.
func Open(fs afero.Fs, dir string) *Store {
	return &Store{
		fs:         fs,
		dir:        dir,
		recs:       make(map[string]*Record),
		subvenance: make(map[hashing.Hash]map[string]struct{}),
		dirty:      make(map[string]bool),
	}
}

func (s *Store) recordsDir() string { return filepath.Join(s.dir, "records") }

func (s *Store) recordPath(pageID string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(pageID))
	return filepath.Join(s.recordsDir(), name+".json")
}

// load reads all records and rebuilds the in-memory index. Called with
// the mutex held.
func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true

	entries, err := afero.ReadDir(s.fs, s.recordsDir())
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.recordsDir(), e.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			// Corrupt record: skip; the page will simply rebuild.
			continue
		}
		s.recs[rec.PagePath] = &rec
		s.indexRecord(&rec)
	}
}

func (s *Store) indexRecord(rec *Record) {
	for _, in := range rec.Inputs {
		set, ok := s.subvenance[in.Hash]
		if !ok {
			set = make(map[string]struct{})
			s.subvenance[in.Hash] = set
		}
		set[rec.PagePath] = struct{}{}
	}
}

func (s *Store) unindexRecord(rec *Record) {
	for _, in := range rec.Inputs {
		if set, ok := s.subvenance[in.Hash]; ok {
			delete(set, rec.PagePath)
			if len(set) == 0 {
				delete(s.subvenance, in.Hash)
			}
		}
	}
}

// Get returns the stored record for a page, or nil.
func (s *Store) Get(pageID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.recs[pageID]
}

// Put stores a record, replacing any previous one and updating the
// subvenance index incrementally (stale mappings removed first).
func (s *Store) Put(rec *Record) {
	if rec.CombinedHash == "" {
		rec.CombinedHash = rec.Provenance().CombinedHash()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if prev, ok := s.recs[rec.PagePath]; ok {
		s.unindexRecord(prev)
	}
	s.recs[rec.PagePath] = rec
	s.indexRecord(rec)
	s.dirty[rec.PagePath] = true
	s.indexDirty = true
}

// IsFresh reports whether a stored record exists whose combined hash
// matches the supplied provenance.
func (s *Store) IsFresh(pageID string, current *Provenance) bool {
	rec := s.Get(pageID)
	if rec == nil {
		return false
	}
	return rec.CombinedHash == current.CombinedHash()
}

// AffectedBy returns the pages whose last provenance referenced hash.
func (s *Store) AffectedBy(hash hashing.Hash) map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	out := make(map[string]struct{})
	for id := range s.subvenance[hash] {
		out[id] = struct{}{}
	}
	return out
}

// Remove drops a page's record (deleted sources).
func (s *Store) Remove(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if prev, ok := s.recs[pageID]; ok {
		s.unindexRecord(prev)
		delete(s.recs, pageID)
		_ = s.fs.Remove(s.recordPath(pageID))
		s.indexDirty = true
	}
}

// Stats counts pages, subvenance buckets, and total input references.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	st := StoreStats{PagesTracked: len(s.recs), SubvenanceHashes: len(s.subvenance)}
	for _, rec := range s.recs {
		st.InputReferences += len(rec.Inputs)
	}
	return st
}

// Save flushes dirty records and the subvenance index through AtomicIO.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	for pageID := range s.dirty {
		rec := s.recs[pageID]
		if rec == nil {
			continue
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal provenance for %s: %w", pageID, err)
		}
		if err := atomicio.WriteBytes(s.fs, s.recordPath(pageID), append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write provenance for %s: %w", pageID, err)
		}
	}
	s.dirty = make(map[string]bool)

	if s.indexDirty {
		index := make(map[string][]string, len(s.subvenance))
		for h, set := range s.subvenance {
			ids := make([]string, 0, len(set))
			for id := range set {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			index[string(h)] = ids
		}
		data, err := json.MarshalIndent(index, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal subvenance index: %w", err)
		}
		if err := atomicio.WriteBytes(s.fs, filepath.Join(s.dir, "subvenance.json"), append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write subvenance index: %w", err)
		}
		s.indexDirty = false
	}
	return nil
}
