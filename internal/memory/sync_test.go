package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/isitzoe/zoebot/internal/vectorindex"
)

type fakeEmbedder struct {
	calls   int
	failOn  string // content that triggers an error
	lastDim int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn != "" && text == f.failOn {
		return nil, errors.New("embedding endpoint unavailable")
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeIndex struct {
	entries map[string]vectorindex.Entry
	matches []vectorindex.Match
	deleted []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[string]vectorindex.Entry)}
}

func (f *fakeIndex) Upsert(ctx context.Context, e vectorindex.Entry) error {
	f.entries[e.ID] = e
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) Range(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	var ids []string
	for id := range f.entries {
		ids = append(ids, id)
	}
	return ids, "", nil
}

func (f *fakeIndex) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.entries, id)
		f.deleted = append(f.deleted, id)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncConvergence(t *testing.T) {
	store := newTestStore(t)
	idx := newFakeIndex()
	sync := NewSynchronizer(store, &fakeEmbedder{}, idx, discardLogger())

	idA, _ := store.Add("user likes cats", "preference")
	idB, _ := store.Add("project zoebot is in go", "project")

	if err := sync.SyncUnsynced(context.Background()); err != nil {
		t.Fatalf("SyncUnsynced: %v", err)
	}

	unsynced, _ := store.ListUnsynced()
	if len(unsynced) != 0 {
		t.Errorf("unsynced after cycle = %d, want 0", len(unsynced))
	}

	for _, id := range []string{idA, idB} {
		e, ok := idx.entries[id]
		if !ok {
			t.Errorf("no vector entry for %s", id)
			continue
		}
		r, _ := store.Get(id)
		if e.Metadata.Content != r.Content || e.Metadata.Category != r.Category {
			t.Errorf("metadata mismatch for %s: %+v", id, e.Metadata)
		}
	}
}

func TestSyncFailureAbortsCycle(t *testing.T) {
	store := newTestStore(t)
	idx := newFakeIndex()
	emb := &fakeEmbedder{failOn: "second"}
	sync := NewSynchronizer(store, emb, idx, discardLogger())

	// created_at ordering: first, second, third
	store.Add("first", "fact")
	store.Add("second", "fact")
	store.Add("third", "fact")

	err := sync.SyncUnsynced(context.Background())
	if err == nil {
		t.Fatal("expected cycle error")
	}

	// The record before the failure stays synced; the failing one and
	// everything after it remain unsynced for the next tick.
	unsynced, _ := store.ListUnsynced()
	if len(unsynced) != 2 {
		t.Fatalf("unsynced = %d, want 2", len(unsynced))
	}
	for _, r := range unsynced {
		if r.Content == "first" {
			t.Error("already-synced record reverted")
		}
	}

	// Next tick with a healthy embedder converges.
	emb.failOn = ""
	if err := sync.SyncUnsynced(context.Background()); err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	unsynced, _ = store.ListUnsynced()
	if len(unsynced) != 0 {
		t.Errorf("unsynced after retry = %d, want 0", len(unsynced))
	}
}

func TestReconcileOrphans(t *testing.T) {
	store := newTestStore(t)
	idx := newFakeIndex()
	sync := NewSynchronizer(store, &fakeEmbedder{}, idx, discardLogger())

	id, _ := store.Add("kept", "fact")
	if err := sync.SyncUnsynced(context.Background()); err != nil {
		t.Fatalf("SyncUnsynced: %v", err)
	}

	// An entry with no backing memory record is an orphan.
	idx.entries["orphan-1"] = vectorindex.Entry{ID: "orphan-1"}

	if err := sync.ReconcileOrphans(context.Background()); err != nil {
		t.Fatalf("ReconcileOrphans: %v", err)
	}

	if _, ok := idx.entries["orphan-1"]; ok {
		t.Error("orphan survived reconciliation")
	}
	if _, ok := idx.entries[id]; !ok {
		t.Error("live entry was deleted")
	}
}

func TestQueryRelevantFiltersEmptyContent(t *testing.T) {
	store := newTestStore(t)
	idx := newFakeIndex()
	idx.matches = []vectorindex.Match{
		{ID: "a", Score: 0.9, Metadata: vectorindex.Metadata{Content: "likes cats", Category: "preference"}},
		{ID: "b", Score: 0.7, Metadata: vectorindex.Metadata{}},
	}
	sync := NewSynchronizer(store, &fakeEmbedder{}, idx, discardLogger())

	results, err := sync.QueryRelevant(context.Background(), "cats", 5)
	if err != nil {
		t.Fatalf("QueryRelevant: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (empty content filtered)", len(results))
	}
	if results[0].Content != "likes cats" || results[0].Score != 0.9 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestSyncSequentialEmbedCalls(t *testing.T) {
	store := newTestStore(t)
	idx := newFakeIndex()
	emb := &fakeEmbedder{}
	sync := NewSynchronizer(store, emb, idx, discardLogger())

	for i := 0; i < 5; i++ {
		store.Add(fmt.Sprintf("record %d", i), "fact")
	}

	if err := sync.SyncUnsynced(context.Background()); err != nil {
		t.Fatalf("SyncUnsynced: %v", err)
	}
	if emb.calls != 5 {
		t.Errorf("embed calls = %d, want 5", emb.calls)
	}
}
