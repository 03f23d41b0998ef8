package persistence

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/host/hosttest"
	"shopcraft.gg/internal/persistence/archive"
	"shopcraft.gg/internal/shop"
)

type stubSource struct {
	records  []shop.Record
	loaded   []shop.Record
	failUUID string
	saves    int
}

func (s *stubSource) CollectRecords() []shop.Record { return s.records }

func (s *stubSource) LoadShopkeeper(rec shop.Record) (*shop.Shopkeeper, error) {
	if rec.UUID == s.failUUID {
		return nil, errors.New("broken record")
	}
	s.loaded = append(s.loaded, rec)
	return nil, nil
}

func (s *stubSource) OnSaveComplete() { s.saves++ }

func testRecord(id int) shop.Record {
	return shop.Record{
		ID: id, UUID: uuid.NewString(),
		Type: "admin", Object: "entity",
		World: "overworld", X: id, Y: 1, Z: 0, HasPos: true,
	}
}

func newStoreTest(t *testing.T, delayTicks int) (*hosttest.Fake, *stubSource, *Store, string) {
	t.Helper()
	f := hosttest.New()
	src := &stubSource{}
	path := filepath.Join(t.TempDir(), "shopkeepers.sav")
	st := NewStore(path, delayTicks, f.Scheduler(), src, log.New(io.Discard, "", 0))
	return f, src, st, path
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	_, _, st, _ := newStoreTest(t, 5)
	loaded, failed, err := st.Load()
	if err != nil || loaded != 0 || failed != 0 {
		t.Fatalf("load = %d/%d, err %v", loaded, failed, err)
	}
}

func TestLoad_SkipsBadRecords(t *testing.T) {
	_, src, st, path := newStoreTest(t, 5)

	bad := testRecord(2)
	sf := archive.SaveFileV1{
		Header:      archive.Header{Version: 1, Count: 3},
		Shopkeepers: []shop.Record{testRecord(1), bad, testRecord(3)},
	}
	if err := archive.Write(path, sf); err != nil {
		t.Fatalf("write: %v", err)
	}
	src.failUUID = bad.UUID

	loaded, failed, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != 2 || failed != 1 {
		t.Fatalf("load = %d/%d, want 2/1", loaded, failed)
	}
	if len(src.loaded) != 2 || src.loaded[0].ID != 1 || src.loaded[1].ID != 3 {
		t.Fatalf("loaded records = %+v", src.loaded)
	}
}

func TestLoad_CorruptFileFails(t *testing.T) {
	_, _, st, path := newStoreTest(t, 5)
	if err := os.WriteFile(path, []byte("not a save file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := st.Load(); err == nil {
		t.Fatalf("corrupt file loaded without error")
	}
}

func TestRequestSave_CoalescesIntoOneFlush(t *testing.T) {
	f, src, st, path := newStoreTest(t, 5)
	src.records = []shop.Record{testRecord(1), testRecord(2)}

	st.RequestSave()
	st.RequestSave()
	st.RequestSave()
	if !st.Dirty() {
		t.Fatalf("store not dirty after RequestSave")
	}
	f.Tick(4)
	if st.Flushes() != 0 {
		t.Fatalf("flush ran before the delay elapsed")
	}
	f.Tick(1)
	if st.Flushes() != 1 {
		t.Fatalf("flushes = %d, want 1", st.Flushes())
	}
	if st.Dirty() {
		t.Fatalf("store still dirty after flush")
	}
	if src.saves != 1 {
		t.Fatalf("save completions = %d, want 1", src.saves)
	}

	sf, err := archive.Read(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if sf.Header.Count != 2 || len(sf.Shopkeepers) != 2 {
		t.Fatalf("saved %d records, header count %d", len(sf.Shopkeepers), sf.Header.Count)
	}
}

func TestRequestSave_NewDirtAfterFlushSavesAgain(t *testing.T) {
	f, src, st, _ := newStoreTest(t, 5)
	src.records = []shop.Record{testRecord(1)}

	st.RequestSave()
	f.Tick(5)
	st.RequestSave()
	f.Tick(5)
	if st.Flushes() != 2 {
		t.Fatalf("flushes = %d, want 2", st.Flushes())
	}
}

// gatedScheduler parks background work until the test releases it, keeping
// a write deliberately in flight.
type gatedScheduler struct {
	host.Scheduler
	async chan func()
}

func (g *gatedScheduler) RunAsync(fn func()) { g.async <- fn }

func TestSaveNow_WaitsForInFlightWrite(t *testing.T) {
	f := hosttest.New()
	src := &stubSource{records: []shop.Record{testRecord(1)}}
	sched := &gatedScheduler{Scheduler: f.Scheduler(), async: make(chan func(), 1)}
	path := filepath.Join(t.TempDir(), "shopkeepers.sav")
	st := NewStore(path, 2, sched, src, log.New(io.Discard, "", 0))

	st.RequestSave()
	f.Tick(2)
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("background write ran before release")
	}

	// Release the held write concurrently; the synchronous save must not
	// start until it has finished, so its newer snapshot ends up on disk.
	src.records = []shop.Record{testRecord(1), testRecord(2)}
	write := <-sched.async
	done := make(chan struct{})
	go func() {
		write()
		close(done)
	}()
	if err := st.SaveNow(); err != nil {
		t.Fatalf("save: %v", err)
	}
	<-done
	f.Drain()

	sf, err := archive.Read(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(sf.Shopkeepers) != 2 {
		t.Fatalf("saved %d records, want the later snapshot of 2", len(sf.Shopkeepers))
	}
	if st.Dirty() {
		t.Fatalf("store still dirty after synchronous save")
	}
}

func TestSaveImmediateIfDirty(t *testing.T) {
	f, src, st, path := newStoreTest(t, 5)
	src.records = []shop.Record{testRecord(1)}

	// Clean store: nothing written.
	if err := st.SaveImmediateIfDirty(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("clean shutdown wrote a file")
	}

	st.RequestSave()
	if err := st.SaveImmediateIfDirty(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if st.Flushes() != 1 || st.Dirty() {
		t.Fatalf("flushes = %d dirty = %v", st.Flushes(), st.Dirty())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("save file missing: %v", err)
	}

	// The already scheduled flush finds nothing dirty and stays quiet.
	f.Tick(5)
	if st.Flushes() != 1 {
		t.Fatalf("stale scheduled flush wrote again")
	}
}
