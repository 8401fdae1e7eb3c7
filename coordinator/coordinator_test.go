package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vaultindex/config"
	"vaultindex/embedder"
	"vaultindex/indexer"
	"vaultindex/monitor"
	"vaultindex/queue"
	"vaultindex/scheduler"
	"vaultindex/store"
)

// failingEmbedder errors on any text containing the marker, otherwise
// behaves like the mock embedder.
type failingEmbedder struct {
	*embedder.MockEmbedder
	marker string
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, f.marker) {
			return nil, errors.New("embedding provider rejected input")
		}
	}
	return f.MockEmbedder.EmbedBatch(ctx, texts)
}

// slowEmbedder stretches every embedding call so tests can land events while
// a drain is in flight.
type slowEmbedder struct {
	*embedder.MockEmbedder
	delay time.Duration
}

func (s *slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	time.Sleep(s.delay)
	return s.MockEmbedder.EmbedBatch(ctx, texts)
}

// recordingEmbedder notes when each embedding call happened.
type recordingEmbedder struct {
	*embedder.MockEmbedder
	mu    sync.Mutex
	calls []time.Time
}

func (r *recordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.calls = append(r.calls, time.Now())
	r.mu.Unlock()
	return r.MockEmbedder.EmbedBatch(ctx, texts)
}

type fixture struct {
	coord *Coordinator
	queue *queue.EventQueue
	store *store.GOBStore
	mon   *monitor.Monitor
	root  string
}

func newFixture(t *testing.T, strategy string, emb embedder.Embedder) *fixture {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Strategy.Type = strategy
	cfg.Strategy.IdleThresholdMs = 0
	cfg.Strategy.ProcessingDelayMs = 0
	cfg.Watch.DebounceMs = 10
	cfg.Watch.InitRetries = 2
	cfg.Watch.InitRetryDelayMs = 1

	st := store.NewGOBStore(filepath.Join(root, ".vaultindex", "index.gob"))
	if emb == nil {
		emb = embedder.NewMockEmbedder(8)
	}
	idx := indexer.NewIndexer(root, st, emb, indexer.NewChunker(64, 8))
	matcher := indexer.NewIgnoreMatcher(root, cfg.Index.Extensions, cfg.Index.Ignore)
	mon := monitor.NewMonitor(root, matcher, idx, time.Minute, time.Minute, 0)
	mon.MarkCorpusReady()

	sched, err := scheduler.NewScheduler(cfg.Strategy)
	if err != nil {
		t.Fatal(err)
	}

	q := queue.NewEventQueue(config.GetQueuePath(root))
	c := New(root, cfg, q, mon, sched, idx)
	return &fixture{coord: c, queue: q, store: st, mon: mon, root: root}
}

func (f *fixture) write(t *testing.T, relPath, content string) {
	t.Helper()
	full := filepath.Join(f.root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCoordinator_IdleStrategyEmbedsOnModify(t *testing.T) {
	f := newFixture(t, config.StrategyIdle, nil)
	f.write(t, "notes/a.md", "hello world")

	f.coord.OnModify("notes/a.md")

	waitFor(t, func() bool {
		doc, _ := f.store.GetDocument(context.Background(), "notes/a.md")
		return doc != nil
	})
	waitFor(t, func() bool { return f.queue.Size() == 0 })
}

func TestCoordinator_ManualStrategyRetainsUpserts(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "a.md", "hello")

	f.coord.OnModify("a.md")
	f.coord.DrainNow()

	if !f.queue.Contains("a.md") {
		t.Error("expected upsert retained under manual strategy")
	}
	doc, _ := f.store.GetDocument(context.Background(), "a.md")
	if doc != nil {
		t.Error("expected no embedding under manual strategy")
	}
}

func TestCoordinator_DeletesApplyRegardlessOfStrategy(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)

	// Seed the index directly, then delete.
	ctx := context.Background()
	if err := f.store.SaveDocument(ctx, store.Document{Path: "a.md", Hash: "h", ChunkIDs: nil}); err != nil {
		t.Fatal(err)
	}

	f.coord.OnDelete("a.md")
	waitFor(t, func() bool { return !f.queue.Contains("a.md") })

	doc, _ := f.store.GetDocument(ctx, "a.md")
	if doc != nil {
		t.Error("expected document removed even under manual strategy")
	}
}

func TestCoordinator_IneligiblePathsDropped(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "image.png", "binary")

	f.coord.OnModify("image.png")
	f.coord.OnDelete("image.png")

	if f.queue.Size() != 0 {
		t.Errorf("expected ineligible events dropped, queue has %d", f.queue.Size())
	}
}

func TestCoordinator_SettleWindowSuppressesUpserts(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Strategy.Type = config.StrategyManual

	st := store.NewGOBStore(filepath.Join(root, "index.gob"))
	idx := indexer.NewIndexer(root, st, embedder.NewMockEmbedder(8), indexer.NewChunker(64, 8))
	matcher := indexer.NewIgnoreMatcher(root, cfg.Index.Extensions, cfg.Index.Ignore)
	// Settle window of an hour: corpus never becomes ready in this test.
	mon := monitor.NewMonitor(root, matcher, idx, time.Minute, time.Minute, time.Hour)
	mon.MarkCorpusReady()

	sched, err := scheduler.NewScheduler(cfg.Strategy)
	if err != nil {
		t.Fatal(err)
	}
	q := queue.NewEventQueue(filepath.Join(root, "queue.json"))
	c := New(root, cfg, q, mon, sched, idx)

	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	c.OnCreate("a.md")

	if q.Size() != 0 {
		t.Error("expected create suppressed during settle window")
	}
	if mon.SuppressedCount() != 1 {
		t.Errorf("expected 1 suppressed event, got %d", mon.SuppressedCount())
	}
}

func TestCoordinator_UnchangedContentNotQueued(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "a.md", "stable")

	f.coord.OnModify("a.md")
	waitFor(t, func() bool { return f.queue.Contains("a.md") })
	f.queue.Clear()

	// Same content again: the monitor sees no change.
	f.coord.OnModify("a.md")
	time.Sleep(50 * time.Millisecond)
	if f.queue.Size() != 0 {
		t.Errorf("expected no queue entry for unchanged content, got %d", f.queue.Size())
	}
}

func TestCoordinator_OwnWritesDoNotSelfTrigger(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "a.md", "hello")

	release := f.mon.BeginSystemOperation()
	f.coord.OnModify("a.md")
	f.coord.OnDelete("a.md")
	release()

	if f.queue.Size() != 0 {
		t.Errorf("expected events during system operation dropped, got %d", f.queue.Size())
	}
}

func TestCoordinator_RenameOrdersDeleteBeforeCreate(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "new.md", "content")

	// Hold the drain inside the debounce window so the queue can be inspected.
	f.coord.debounce = time.Minute
	f.coord.lastDrain = time.Now()

	f.coord.OnRename("old.md", "new.md")

	events := f.queue.List()
	if len(events) != 2 {
		t.Fatalf("expected 2 queued events, got %d", len(events))
	}
	if events[0].Path != "old.md" || !events[0].IsDelete() {
		t.Errorf("expected delete of old path first, got %s %s", events[0].Op, events[0].Path)
	}
	if events[1].Path != "new.md" || events[1].Op != queue.OpCreate {
		t.Errorf("expected create of new path second, got %s %s", events[1].Op, events[1].Path)
	}
}

func TestCoordinator_EditDuringDrainIsNotLost(t *testing.T) {
	// A user save landing while a slow embed is in flight must still be
	// picked up; nothing a drain does writes into the vault, so in-flight
	// drains never mask genuine events.
	emb := &slowEmbedder{MockEmbedder: embedder.NewMockEmbedder(8), delay: 200 * time.Millisecond}
	f := newFixture(t, config.StrategyIdle, emb)

	f.write(t, "a.md", "first")
	f.coord.OnModify("a.md")

	// Land a second edit while the first drain is still embedding.
	time.Sleep(50 * time.Millisecond)
	f.write(t, "b.md", "second")
	f.coord.OnModify("b.md")

	waitFor(t, func() bool {
		docA, _ := f.store.GetDocument(context.Background(), "a.md")
		docB, _ := f.store.GetDocument(context.Background(), "b.md")
		return docA != nil && docB != nil
	})
	waitFor(t, func() bool { return f.queue.Size() == 0 })
}

func TestCoordinator_DrainPacesUpsertBatches(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Strategy.Type = config.StrategyIdle
	cfg.Strategy.IdleThresholdMs = 0
	cfg.Strategy.BatchSize = 1
	cfg.Strategy.ProcessingDelayMs = 100

	emb := &recordingEmbedder{MockEmbedder: embedder.NewMockEmbedder(8)}
	st := store.NewGOBStore(filepath.Join(root, "index.gob"))
	idx := indexer.NewIndexer(root, st, emb, indexer.NewChunker(64, 8))
	matcher := indexer.NewIgnoreMatcher(root, cfg.Index.Extensions, cfg.Index.Ignore)
	mon := monitor.NewMonitor(root, matcher, idx, time.Minute, time.Minute, 0)
	mon.MarkCorpusReady()

	sched, err := scheduler.NewScheduler(cfg.Strategy)
	if err != nil {
		t.Fatal(err)
	}
	q := queue.NewEventQueue(filepath.Join(root, "queue.json"))
	c := New(root, cfg, q, mon, sched, idx)

	for i, name := range []string{"a.md", "b.md", "c.md"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
		q.Add(queue.FileEvent{Path: name, Op: queue.OpModify, Timestamp: int64(i + 1), Priority: queue.PriorityNormal})
	}

	start := time.Now()
	c.DrainNow()
	elapsed := time.Since(start)

	emb.mu.Lock()
	calls := len(emb.calls)
	emb.mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 embedding calls, got %d", calls)
	}
	if elapsed < 200*time.Millisecond {
		t.Errorf("expected inter-batch delays to pace the drain, finished in %v", elapsed)
	}
	if q.Size() != 0 {
		t.Errorf("expected queue drained, %d events remain", q.Size())
	}
}

func TestCoordinator_DrainHonorsEmbedCoolDown(t *testing.T) {
	f := newFixture(t, config.StrategyIdle, nil)
	f.write(t, "a.md", "v1")
	f.coord.OnModify("a.md")
	waitFor(t, func() bool {
		doc, _ := f.store.GetDocument(context.Background(), "a.md")
		return doc != nil && f.queue.Size() == 0
	})
	first, _ := f.store.GetDocument(context.Background(), "a.md")

	// A rewrite right after an embed queues but must wait out the cool-down
	// even when the scheduler would otherwise allow processing.
	f.write(t, "a.md", "v2")
	f.coord.OnModify("a.md")
	waitFor(t, func() bool { return f.queue.Contains("a.md") })

	f.coord.DrainNow()

	if !f.queue.Contains("a.md") {
		t.Error("expected throttled change retained until the cool-down ends")
	}
	doc, _ := f.store.GetDocument(context.Background(), "a.md")
	if doc == nil || doc.Hash != first.Hash {
		t.Error("expected no re-embed inside the cool-down window")
	}
}

func TestCoordinator_StartupPassEmbedsRestoredQueue(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "a.md", "alpha")
	f.write(t, "b.md", "beta")

	f.queue.Add(queue.FileEvent{Path: "a.md", Op: queue.OpModify, Timestamp: 1, Priority: queue.PriorityNormal})
	f.queue.Add(queue.FileEvent{Path: "b.md", Op: queue.OpModify, Timestamp: 2, Priority: queue.PriorityNormal})

	if err := f.coord.ProcessStartupQueue(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if f.queue.Size() != 0 {
		t.Errorf("expected queue drained, %d events remain", f.queue.Size())
	}
	for _, path := range []string{"a.md", "b.md"} {
		doc, _ := f.store.GetDocument(context.Background(), path)
		if doc == nil {
			t.Errorf("expected %s embedded during startup pass", path)
		}
	}
}

func TestCoordinator_StartupPassDropsVanishedFiles(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)

	ctx := context.Background()
	if err := f.store.SaveDocument(ctx, store.Document{Path: "gone.md", Hash: "h"}); err != nil {
		t.Fatal(err)
	}
	f.queue.Add(queue.FileEvent{Path: "gone.md", Op: queue.OpModify, Timestamp: 1, Priority: queue.PriorityNormal})

	if err := f.coord.ProcessStartupQueue(ctx, 10); err != nil {
		t.Fatal(err)
	}

	if f.queue.Contains("gone.md") {
		t.Error("expected vanished file cleared from queue")
	}
	doc, _ := f.store.GetDocument(ctx, "gone.md")
	if doc != nil {
		t.Error("expected stale index entry removed")
	}
}

func TestCoordinator_StartupPassIsolatesFailures(t *testing.T) {
	emb := &failingEmbedder{MockEmbedder: embedder.NewMockEmbedder(8), marker: "POISON"}
	f := newFixture(t, config.StrategyManual, emb)

	f.write(t, "good1.md", "fine")
	f.write(t, "bad.md", "POISON pill")
	f.write(t, "good2.md", "also fine")

	f.queue.Add(queue.FileEvent{Path: "good1.md", Op: queue.OpModify, Timestamp: 1, Priority: queue.PriorityNormal})
	f.queue.Add(queue.FileEvent{Path: "bad.md", Op: queue.OpModify, Timestamp: 2, Priority: queue.PriorityNormal})
	f.queue.Add(queue.FileEvent{Path: "good2.md", Op: queue.OpModify, Timestamp: 3, Priority: queue.PriorityNormal})

	// One big sub-batch forces the one-by-one fallback.
	if err := f.coord.ProcessStartupQueue(context.Background(), 10); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, path := range []string{"good1.md", "good2.md"} {
		doc, _ := f.store.GetDocument(ctx, path)
		if doc == nil {
			t.Errorf("expected %s embedded despite failing neighbor", path)
		}
	}
	if !f.queue.Contains("bad.md") {
		t.Error("expected failing file retained in queue")
	}
	if f.queue.Contains("good1.md") || f.queue.Contains("good2.md") {
		t.Error("expected successful files removed from queue")
	}
}

func TestCoordinator_RestartWithUpToDateEmbeddingIsNoOp(t *testing.T) {
	f := newFixture(t, config.StrategyIdle, nil)
	f.write(t, "a.md", "persisted")

	f.coord.OnModify("a.md")
	waitFor(t, func() bool {
		doc, _ := f.store.GetDocument(context.Background(), "a.md")
		return doc != nil && f.queue.Size() == 0
	})

	// Simulate restart: fresh monitor and coordinator over the same store,
	// with the old queue snapshot re-delivering the event.
	f.queue.Add(queue.FileEvent{Path: "a.md", Op: queue.OpModify, Timestamp: 1, Priority: queue.PriorityNormal})
	if err := f.coord.ProcessStartupQueue(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	if f.queue.Size() != 0 {
		t.Error("expected re-queued event for up-to-date file to resolve to a no-op")
	}
}

func TestCoordinator_QueueFileEvent(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "a.md", "content")

	if err := f.coord.QueueFileEvent("a.md", queue.OpModify, queue.PriorityHigh); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return f.queue.Contains("a.md") })

	if err := f.coord.QueueFileEvent("bad.png", queue.OpModify, queue.PriorityNormal); err == nil {
		t.Error("expected error for ineligible path")
	}
}

func TestCoordinator_WaitReadyBoundedRetry(t *testing.T) {
	emb := &failingEmbedder{MockEmbedder: embedder.NewMockEmbedder(8), marker: ""}
	f := newFixture(t, config.StrategyManual, brokenPingEmbedder{emb})

	err := f.coord.WaitReady(context.Background())
	if err == nil {
		t.Error("expected error after bounded retries against dead embedder")
	}
}

type brokenPingEmbedder struct {
	embedder.Embedder
}

func (brokenPingEmbedder) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestCoordinator_Diagnose(t *testing.T) {
	f := newFixture(t, config.StrategyManual, nil)
	f.write(t, "notes/a.md", "content")

	f.coord.OnModify("notes/a.md")
	waitFor(t, func() bool { return f.queue.Contains("notes/a.md") })

	d := f.coord.Diagnose()
	if d.Strategy != config.StrategyManual {
		t.Errorf("unexpected strategy: %s", d.Strategy)
	}
	if d.QueueSize != 1 {
		t.Errorf("expected queue size 1, got %d", d.QueueSize)
	}
	if d.WorkspaceActivity["notes"] != 1 {
		t.Errorf("expected workspace activity recorded, got %v", d.WorkspaceActivity)
	}
	if d.CurrentSession == nil {
		t.Error("expected an active session")
	}
}
