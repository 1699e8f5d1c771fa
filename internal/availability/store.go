package availability

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Unknown is the availability reported for peers the estimator has never
// observed.
const Unknown = -1.0

// Record is the persisted per-peer availability state.
type Record struct {
	Count     uint64  `json:"count"`
	Connected bool    `json:"connected"`
	Avail     float64 `json:"avail"`
}

// Store owns the availability map. The estimator holds the only writer; the
// report path reads through Availability and Snapshot.
type Store struct {
	mu     sync.RWMutex
	peers  map[string]Record
	path   string
	logger *log.Logger
}

func NewStore(dataDir string, logger *log.Logger) *Store {
	return &Store{
		peers:  map[string]Record{},
		path:   filepath.Join(dataDir, "availability.json"),
		logger: logger,
	}
}

// Load reads the persisted snapshot. A missing or corrupt file starts the
// store empty; neither is fatal.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) && s.logger != nil {
			s.logger.Printf("avail: read %s: %v", s.path, err)
		}
		return
	}
	peers := map[string]Record{}
	if err := json.Unmarshal(data, &peers); err != nil {
		if s.logger != nil {
			s.logger.Printf("avail: corrupt state %s, starting empty: %v", s.path, err)
		}
		return
	}
	s.mu.Lock()
	s.peers = peers
	s.mu.Unlock()
}

// Availability returns the smoothed score for one peer, or Unknown.
func (s *Store) Availability(peerID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.peers[peerID]
	if !ok {
		return Unknown
	}
	return rec.Avail
}

// Snapshot returns a copy of the whole map.
func (s *Store) Snapshot() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record, len(s.peers))
	for id, rec := range s.peers {
		out[id] = rec
	}
	return out
}

// replace publishes a new map and rewrites the snapshot file through a
// temp file and rename, so a crash mid-write cannot corrupt it.
func (s *Store) replace(peers map[string]Record) error {
	s.mu.Lock()
	s.peers = peers
	s.mu.Unlock()

	data, err := json.Marshal(peers)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
