package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// querier is satisfied by *sql.Conn and *sql.DB.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// catchUp applies every version committed by another process since the
// last one this store has seen. It returns the types those versions
// touched, deduplicated.
func (s *Store) catchUp(ctx context.Context, q querier) ([]uuid.UUID, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	rows, err := q.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM item_versions v
		WHERE v.seq > ? ORDER BY v.seq
	`, s.lastSeq)
	if err != nil {
		return nil, fmt.Errorf("querying remote versions: %w", err)
	}
	defer rows.Close()

	var touched []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for rows.Next() {
		seq, item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning remote version: %w", err)
		}
		if item.Type == domain.TypeOfTypesID {
			s.applyType(item)
		}
		if _, ok := seen[item.Type]; !ok {
			seen[item.Type] = struct{}{}
			touched = append(touched, item.Type)
		}
		s.lastSeq = max(s.lastSeq, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating remote versions: %w", err)
	}
	return touched, nil
}

// SyncRemote picks up writes made by other processes and notifies
// remote-change subscribers. It does nothing while this store holds
// its own write lock; the lock holder already caught up when the
// transaction began.
func (s *Store) SyncRemote(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
	default:
		return nil
	}
	touched, err := s.catchUp(ctx, s.db)
	<-s.sem
	if err != nil {
		return err
	}
	if len(touched) > 0 {
		logger.Debug("picked up remote changes in %s for %d types", s.path, len(touched))
	}
	s.hub.PublishRemote(touched...)
	return nil
}

// Watch starts watching the database files for writes by other
// processes. Calling it again is a no-op.
func (s *Store) Watch() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	s.watcher = w
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.watchLoop(w, s.done)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher, done <-chan struct{}) {
	defer s.wg.Done()
	base := filepath.Base(s.path)

	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := s.SyncRemote(context.Background()); err != nil {
				logger.Warn("syncing remote changes in %s: %v", s.path, err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("watching %s: %v", s.path, err)
		}
	}
}

func (s *Store) stopWatching() {
	s.watchMu.Lock()
	w := s.watcher
	done := s.done
	s.watcher = nil
	s.watchMu.Unlock()

	if w == nil {
		return
	}
	close(done)
	w.Close()
	s.wg.Wait()
}
