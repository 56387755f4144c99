package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Batch run states exposed through the progress snapshot.
const (
	RunStateRunning   = "running"
	RunStateCompleted = "completed"
	RunStateFailed    = "failed"
)

const progressTTL = time.Hour

// BatchProgress is the observable state of one pipeline run, polled by the
// API while the batch is underway. It is advisory only; correctness never
// depends on it.
type BatchProgress struct {
	RunID      string       `json:"run_id"`
	State      string       `json:"state"`
	Step       string       `json:"step"`
	Percent    int          `json:"percent"`
	Total      int          `json:"total"`
	Processed  int          `json:"processed"`
	StartedAt  time.Time    `json:"started_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Report     *BatchReport `json:"report,omitempty"`
}

// ProgressStore keeps run snapshots addressable by run id. Save failures are
// absorbed: losing a snapshot only degrades the progress display.
type ProgressStore interface {
	Save(ctx context.Context, progress *BatchProgress)
	Load(ctx context.Context, runID string) (*BatchProgress, bool)
}

// NewProgressStore prefers Redis so progress survives restarts and is shared
// across replicas, falling back to process memory when Redis is absent.
func NewProgressStore(client *redis.Client) ProgressStore {
	if client == nil {
		return NewMemoryProgressStore()
	}
	return &RedisProgressStore{client: client}
}

type RedisProgressStore struct {
	client *redis.Client
}

func progressKey(runID string) string {
	return "batch:progress:" + runID
}

func (s *RedisProgressStore) Save(ctx context.Context, progress *BatchProgress) {
	payload, err := json.Marshal(progress)
	if err != nil {
		log.Printf("WARN: failed to encode progress for run %s: %v", progress.RunID, err)
		return
	}
	if err := s.client.Set(ctx, progressKey(progress.RunID), payload, progressTTL).Err(); err != nil {
		log.Printf("WARN: failed to save progress for run %s: %v", progress.RunID, err)
	}
}

func (s *RedisProgressStore) Load(ctx context.Context, runID string) (*BatchProgress, bool) {
	payload, err := s.client.Get(ctx, progressKey(runID)).Result()
	if err != nil {
		return nil, false
	}
	var progress BatchProgress
	if err := json.Unmarshal([]byte(payload), &progress); err != nil {
		return nil, false
	}
	return &progress, true
}

type MemoryProgressStore struct {
	mu   sync.RWMutex
	runs map[string]*BatchProgress
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{runs: make(map[string]*BatchProgress)}
}

func (s *MemoryProgressStore) Save(ctx context.Context, progress *BatchProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *progress
	s.runs[progress.RunID] = &copied

	cutoff := time.Now().Add(-progressTTL)
	for id, run := range s.runs {
		if run.UpdatedAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
}

func (s *MemoryProgressStore) Load(ctx context.Context, runID string) (*BatchProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	progress, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	copied := *progress
	return &copied, true
}
