// Package persistence implements the dirty-flag driven save scheduler for
// shopkeeper records. Mutations mark the store dirty; flushes are coalesced
// and written off the logic thread, with a synchronous path for shutdown.
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/persistence/archive"
	"shopcraft.gg/internal/shop"
)

const saveFileVersion = 1

// RecordSource is the registry surface the store works against.
type RecordSource interface {
	CollectRecords() []shop.Record
	LoadShopkeeper(rec shop.Record) (*shop.Shopkeeper, error)
	OnSaveComplete()
}

type Store struct {
	path  string
	sched host.Scheduler
	log   *log.Logger
	src   RecordSource

	delayTicks int

	dirty   bool
	pending bool
	saving  bool

	flushes int

	wg sync.WaitGroup
}

func NewStore(path string, delayTicks int, sched host.Scheduler, src RecordSource, logger *log.Logger) *Store {
	return &Store{
		path:       path,
		sched:      sched,
		log:        logger,
		src:        src,
		delayTicks: delayTicks,
	}
}

// Load reads the save file and rebuilds shopkeepers. A missing file is an
// empty store; any other read failure is returned so the caller aborts
// enabling instead of silently starting empty over existing data.
func (s *Store) Load() (loaded, failed int, err error) {
	sf, err := archive.Read(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read save file %s: %w", s.path, err)
	}
	for _, rec := range sf.Shopkeepers {
		if _, err := s.src.LoadShopkeeper(rec); err != nil {
			// One bad record never aborts the batch.
			s.log.Printf("storage: skipping shopkeeper record: %v", err)
			failed++
			continue
		}
		loaded++
	}
	return loaded, failed, nil
}

// RequestSave marks the store dirty and schedules a coalesced asynchronous
// flush; repeated calls before the flush runs collapse into one write.
func (s *Store) RequestSave() {
	s.dirty = true
	if s.pending {
		return
	}
	s.pending = true
	delay := s.delayTicks
	if delay < 1 {
		delay = 1
	}
	s.sched.RunLater(delay, s.flush)
}

// flush runs on the logic thread: it snapshots the records and hands the
// file write to the background worker.
func (s *Store) flush() {
	s.pending = false
	if !s.dirty {
		return
	}
	if s.saving {
		// A write is still in flight; try again shortly.
		s.RequestSave()
		return
	}
	s.dirty = false
	s.saving = true
	sf := s.buildSaveFile()

	s.wg.Add(1)
	s.sched.RunAsync(func() {
		defer s.wg.Done()
		err := archive.Write(s.path, sf)
		s.sched.RunOnLogicThread(func() {
			s.saving = false
			if err != nil {
				s.log.Printf("storage: save failed: %v", err)
				// Keep the data marked dirty so a later flush retries.
				s.RequestSave()
				return
			}
			s.flushes++
			s.src.OnSaveComplete()
		})
	})
}

// SaveNow performs a synchronous flush on the calling (logic) thread. An
// in-flight background write is waited out first so two writers never
// interleave on the same file.
func (s *Store) SaveNow() error {
	s.wg.Wait()
	s.dirty = false
	s.pending = false
	sf := s.buildSaveFile()
	if err := archive.Write(s.path, sf); err != nil {
		s.dirty = true
		return fmt.Errorf("storage: save failed: %w", err)
	}
	s.flushes++
	s.src.OnSaveComplete()
	return nil
}

// SaveImmediateIfDirty is the shutdown path: it flushes synchronously only
// if unsaved mutations exist.
func (s *Store) SaveImmediateIfDirty() error {
	if !s.dirty && !s.pending {
		return nil
	}
	return s.SaveNow()
}

// WaitBackground blocks until outstanding background writes finish, bounded
// by the timeout. Returns false on timeout.
func (s *Store) WaitBackground(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Store) Dirty() bool { return s.dirty || s.pending || s.saving }
func (s *Store) Flushes() int { return s.flushes }

func (s *Store) buildSaveFile() archive.SaveFileV1 {
	records := s.src.CollectRecords()
	return archive.SaveFileV1{
		Header: archive.Header{
			Version:     saveFileVersion,
			SavedAtUnix: time.Now().Unix(),
			Count:       len(records),
		},
		Shopkeepers: records,
	}
}
