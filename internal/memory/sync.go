package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/isitzoe/zoebot/internal/vectorindex"
)

// reconcilePageSize bounds the id enumeration on both sides of a
// reconciliation pass.
const reconcilePageSize = 1000

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the subset of the vector index the synchronizer needs.
type Index interface {
	Upsert(ctx context.Context, e vectorindex.Entry) error
	Query(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error)
	Range(ctx context.Context, cursor string, limit int) ([]string, string, error)
	Delete(ctx context.Context, ids []string) error
}

// Relevant is one similarity-search hit returned to the conversation
// layer. Score thresholds and category handling are the caller's concern.
type Relevant struct {
	Content  string
	Category string
	Score    float32
}

// Synchronizer keeps the vector index consistent with the memory store.
// It is the only mutator of the synced flag and the only deleter of
// vector entries.
type Synchronizer struct {
	store    *Store
	embedder Embedder
	index    Index
	logger   *slog.Logger

	syncing atomic.Bool
}

// NewSynchronizer creates a synchronizer over the given store and index.
func NewSynchronizer(store *Store, embedder Embedder, index Index, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		store:    store,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// SyncUnsynced projects every unsynced record into the vector index and
// marks it synced. Records are processed sequentially to bound embedding
// throughput. The first failure aborts the remainder of the cycle:
// records already processed keep synced=true, the rest stay unsynced and
// are retried on the next tick. Overlapping calls are no-ops.
func (s *Synchronizer) SyncUnsynced(ctx context.Context) error {
	if !s.syncing.CompareAndSwap(false, true) {
		s.logger.Debug("sync already in progress, skipping")
		return nil
	}
	defer s.syncing.Store(false)

	records, err := s.store.ListUnsynced()
	if err != nil {
		return fmt.Errorf("list unsynced: %w", err)
	}

	if len(records) == 0 {
		s.logger.Debug("no unsynced memories")
		return nil
	}

	s.logger.Info("syncing memories to vector index", "count", len(records))

	for _, r := range records {
		if err := s.syncOne(ctx, r); err != nil {
			return fmt.Errorf("sync memory %s: %w", r.ID, err)
		}
	}

	return nil
}

func (s *Synchronizer) syncOne(ctx context.Context, r *Record) error {
	embedding, err := s.embedder.Embed(ctx, r.Content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	entry := vectorindex.Entry{
		ID:     r.ID,
		Vector: embedding,
		Metadata: vectorindex.Metadata{
			Content:   r.Content,
			Category:  r.Category,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		},
	}
	if err := s.index.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}

	// Only after the vector entry is durably written.
	if err := s.store.MarkSynced(r.ID); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	s.logger.Debug("memory synced", "id", r.ID, "category", r.Category)
	return nil
}

// ReconcileOrphans deletes vector entries whose id has no corresponding
// memory record. This is the only deletion path for vector entries.
func (s *Synchronizer) ReconcileOrphans(ctx context.Context) error {
	memIDs, err := s.store.ListIDs(reconcilePageSize)
	if err != nil {
		return fmt.Errorf("list memory ids: %w", err)
	}

	known := make(map[string]struct{}, len(memIDs))
	for _, id := range memIDs {
		known[id] = struct{}{}
	}

	vecIDs, _, err := s.index.Range(ctx, "0", reconcilePageSize)
	if err != nil {
		return fmt.Errorf("range vector ids: %w", err)
	}

	var orphans []string
	for _, id := range vecIDs {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	if len(orphans) == 0 {
		s.logger.Debug("no orphaned vectors")
		return nil
	}

	if err := s.index.Delete(ctx, orphans); err != nil {
		return fmt.Errorf("delete orphans: %w", err)
	}

	s.logger.Info("deleted orphaned vectors", "count", len(orphans))
	return nil
}

// Sync runs a full cycle: unsynced projection followed by orphan
// reconciliation. Used by the periodic tick and the startup pass.
func (s *Synchronizer) Sync(ctx context.Context) error {
	if err := s.SyncUnsynced(ctx); err != nil {
		return err
	}
	return s.ReconcileOrphans(ctx)
}

// QueryRelevant embeds text and returns the topK most similar memories.
// Entries with no content in their metadata are dropped.
func (s *Synchronizer) QueryRelevant(ctx context.Context, text string, topK int) ([]Relevant, error) {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]Relevant, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Content == "" {
			continue
		}
		results = append(results, Relevant{
			Content:  m.Metadata.Content,
			Category: m.Metadata.Category,
			Score:    m.Score,
		})
	}

	s.logger.Debug("memory query", "hits", len(results), "topK", topK)
	return results, nil
}
