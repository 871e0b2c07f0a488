package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/typeregistry"
	"github.com/custodia-labs/raindrop/internal/logger"
	"github.com/custodia-labs/raindrop/internal/notify"
)

// Ensure Store implements the interface.
var _ driven.ItemStorage = (*Store)(nil)

// dbFileName is the database file inside a user directory.
const dbFileName = "items.db"

// defaultBusyTimeout is the busy timeout of pooled connections.
const defaultBusyTimeout = 5000

const itemColumns = "v.seq, v.version_id, v.item_id, v.type_id, v.ts_sec, v.ts_nsec, v.deleted, v.payload"

// Store is the SQLite item storage of one user. It is the user's
// system storage.
type Store struct {
	db    *sql.DB
	path  string
	id    uuid.UUID
	types *typeregistry.Registry
	hub   *notify.Hub
	sem   chan struct{}

	// seqMu guards lastSeq, the highest version seq this store has seen.
	seqMu   sync.Mutex
	lastSeq int64

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewStore opens (or creates) the item database in dir.
// The bootstrap type item is written on first open and every type item
// is replayed into types.
func NewStore(dir string, types *typeregistry.Registry) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty data directory", domain.ErrInvalidInput)
	}

	// Ensure directory exists
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFileName)

	// Open database with WAL mode so readers never block the writer
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dbPath, defaultBusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:    db,
		path:  dbPath,
		id:    types.StorageID(),
		types: types,
		hub:   notify.NewHub(types.StorageID()),
		sem:   make(chan struct{}, 1),
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.bootstrap(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping types: %w", err)
	}
	if err := s.replayTypes(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("replaying types: %w", err)
	}

	return s, nil
}

// Close stops the watcher and closes the database connection.
func (s *Store) Close() error {
	s.stopWatching()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// StorageID returns the storage id.
func (s *Store) StorageID() uuid.UUID {
	return s.id
}

// TaskHistory returns a task history store backed by this database.
func (s *Store) TaskHistory() driven.TaskHistoryStore {
	return &taskHistoryStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		logger.Debug("applied migration %s to %s", name, s.path)
	}

	return nil
}

// bootstrap writes the type-of-types item if the database is new.
func (s *Store) bootstrap(ctx context.Context) error {
	if s.types.StorageID() != s.id {
		return nil
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}
	var n int
	err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM latest WHERE item_id = ?",
		domain.TypeOfTypesID.String()).Scan(&n)
	if err == nil && n == 0 {
		_, err = insertVersion(ctx, conn, typeregistry.BootstrapItem())
	}
	if err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	_, err = conn.ExecContext(ctx, "COMMIT")
	return err
}

// replayTypes rebuilds the registry from the persisted type items.
func (s *Store) replayTypes(ctx context.Context) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.types.Reset()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM item_versions v
		WHERE v.type_id = ? ORDER BY v.seq
	`, domain.TypeOfTypesID.String())
	if err != nil {
		return fmt.Errorf("querying type items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		seq, item, err := scanItem(rows)
		if err != nil {
			return err
		}
		s.applyType(item)
		s.lastSeq = max(s.lastSeq, seq)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM item_versions").Scan(&s.lastSeq)
}

// applyType feeds a persisted type item to the registry.
func (s *Store) applyType(item domain.Item) {
	if item.ItemID == domain.TypeOfTypesID {
		return
	}
	info, err := s.types.Validate(item, s.id)
	if err != nil {
		logger.Warn("skipping type item %s: %v", item.ItemID, err)
		return
	}
	s.types.Apply(item, info)
}

// Lock acquires the write lock, waiting at most timeout.
// The lock is held in-process and as an immediate SQLite transaction,
// so it also excludes writers in other processes.
func (s *Store) Lock(ctx context.Context, timeout time.Duration) (driven.StorageLock, bool) {
	deadline := time.Now().Add(timeout)
	if !s.acquire(ctx, timeout) {
		return nil, false
	}

	lock, err := s.begin(ctx, time.Until(deadline))
	if err != nil {
		logger.Debug("sqlite lock on %s not acquired: %v", s.path, err)
		<-s.sem
		return nil, false
	}
	return lock, true
}

// acquire takes the in-process semaphore. A non-positive timeout only
// tries once.
func (s *Store) acquire(ctx context.Context, timeout time.Duration) bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// begin opens the write transaction and picks up remote writes that
// committed before it.
func (s *Store) begin(ctx context.Context, remaining time.Duration) (*storageLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	bg := context.Background()
	busy := max(remaining.Milliseconds(), 0)
	if _, err := conn.ExecContext(bg, fmt.Sprintf("PRAGMA busy_timeout = %d", busy)); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.ExecContext(bg, "BEGIN IMMEDIATE"); err != nil {
		resetBusyTimeout(conn)
		conn.Close()
		return nil, err
	}

	remote, err := s.catchUp(bg, conn)
	if err != nil {
		_, _ = conn.ExecContext(bg, "ROLLBACK")
		resetBusyTimeout(conn)
		conn.Close()
		return nil, err
	}
	return &storageLock{store: s, conn: conn, remote: remote}, nil
}

func resetBusyTimeout(conn *sql.Conn) {
	_, _ = conn.ExecContext(context.Background(), fmt.Sprintf("PRAGMA busy_timeout = %d", defaultBusyTimeout))
}

// GetLatest returns the latest version of an item.
func (s *Store) GetLatest(ctx context.Context, itemID uuid.UUID, includeDeletion bool) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM latest l
		JOIN item_versions v ON v.seq = l.version_seq
		WHERE l.item_id = ?
	`, itemID.String())

	_, item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if item.IsTombstone() && !includeDeletion {
		return nil, nil
	}
	return &item, nil
}

// GetVersion returns a specific version.
func (s *Store) GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM item_versions v WHERE v.version_id = ?
	`, versionID.String())

	_, item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// History returns every version of an item in write order.
func (s *Store) History(ctx context.Context, itemID uuid.UUID) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM item_versions v
		WHERE v.item_id = ? ORDER BY v.seq
	`, itemID.String())
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return collectItems(rows, nil)
}

// QueryByType appends the latest live versions matching q to dst.
// Results are ordered by the first insertion of each item.
func (s *Store) QueryByType(ctx context.Context, q domain.ItemQuery, dst []domain.Item) ([]domain.Item, error) {
	fromSec, fromNsec := int64(math.MinInt64), int64(0)
	if !q.From.IsZero() {
		fromSec, fromNsec = q.From.Unix(), int64(q.From.Nanosecond())
	}
	limit := q.Limit
	if q.Unbounded() {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM latest l
		JOIN item_versions v ON v.seq = l.version_seq
		WHERE l.type_id = ? AND l.deleted = 0
		  AND (v.ts_sec > ? OR (v.ts_sec = ? AND v.ts_nsec >= ?))
		ORDER BY l.first_seq
		LIMIT ?
	`, q.Type.String(), fromSec, fromSec, fromNsec, limit)
	if err != nil {
		return dst, fmt.Errorf("querying items: %w", err)
	}
	return collectItems(rows, dst)
}

// Subscribe registers interest in changes of a type.
func (s *Store) Subscribe(typeID uuid.UUID) *notify.Subscription {
	return s.hub.Subscribe(typeID)
}

// MoveType is not supported: a user database has a single storage.
func (s *Store) MoveType(_ context.Context, _, _ uuid.UUID) error {
	return fmt.Errorf("%w: moving types between storages", domain.ErrUnsupported)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (int64, domain.Item, error) {
	var (
		seq                       int64
		versionID, itemID, typeID string
		sec, nsec                 int64
		deleted                   int
		payload                   []byte
	)
	if err := row.Scan(&seq, &versionID, &itemID, &typeID, &sec, &nsec, &deleted, &payload); err != nil {
		return 0, domain.Item{}, err
	}

	var item domain.Item
	var err error
	if item.VersionID, err = uuid.Parse(versionID); err != nil {
		return 0, item, fmt.Errorf("parsing version id: %w", err)
	}
	if item.ItemID, err = uuid.Parse(itemID); err != nil {
		return 0, item, fmt.Errorf("parsing item id: %w", err)
	}
	if item.Type, err = uuid.Parse(typeID); err != nil {
		return 0, item, fmt.Errorf("parsing type id: %w", err)
	}
	item.Timestamp = time.Unix(sec, nsec).UTC()
	if deleted == 0 {
		item.Payload = payload
		if item.Payload == nil {
			item.Payload = []byte{}
		}
	}
	return seq, item, nil
}

func collectItems(rows *sql.Rows, dst []domain.Item) ([]domain.Item, error) {
	defer rows.Close()
	for rows.Next() {
		_, item, err := scanItem(rows)
		if err != nil {
			return dst, fmt.Errorf("scanning item: %w", err)
		}
		dst = append(dst, item)
	}
	if err := rows.Err(); err != nil {
		return dst, fmt.Errorf("iterating items: %w", err)
	}
	return dst, nil
}

// execer is satisfied by *sql.Conn and *sql.DB.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertVersion appends a version and moves the latest pointer.
func insertVersion(ctx context.Context, db execer, item domain.Item) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO item_versions (version_id, item_id, type_id, ts_sec, ts_nsec, deleted, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.VersionID.String(), item.ItemID.String(), item.Type.String(),
		item.Timestamp.Unix(), int64(item.Timestamp.Nanosecond()), boolToInt(item.IsTombstone()), item.Payload)
	if err != nil {
		return 0, fmt.Errorf("inserting version: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO latest (item_id, type_id, version_seq, first_seq, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			type_id = excluded.type_id,
			version_seq = excluded.version_seq,
			deleted = excluded.deleted
	`, item.ItemID.String(), item.Type.String(), seq, seq, boolToInt(item.IsTombstone()))
	if err != nil {
		return 0, fmt.Errorf("updating latest: %w", err)
	}
	return seq, nil
}

// storageLock is a held write transaction.
type storageLock struct {
	store  *Store
	conn   *sql.Conn
	remote []uuid.UUID

	mu       sync.Mutex
	released bool
	maxSeq   int64
	touched  []uuid.UUID
	types    bool
}

func (l *storageLock) AddItemVersion(item domain.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return domain.ErrLockReleased
	}

	info, err := l.store.types.Validate(item, l.store.id)
	if err != nil {
		return err
	}
	seq, err := insertVersion(context.Background(), l.conn, item)
	if err != nil {
		return err
	}
	l.store.types.Apply(item, info)

	l.maxSeq = max(l.maxSeq, seq)
	l.touched = append(l.touched, item.Type)
	if item.Type == domain.TypeOfTypesID {
		l.types = true
	}
	return nil
}

// Release commits the transaction. If the commit fails the registry is
// rebuilt from what is actually persisted.
func (l *storageLock) Release() error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return domain.ErrLockReleased
	}
	l.released = true
	touched := l.touched
	l.mu.Unlock()

	s := l.store
	bg := context.Background()
	_, err := l.conn.ExecContext(bg, "COMMIT")
	if err != nil {
		_, _ = l.conn.ExecContext(bg, "ROLLBACK")
		touched = nil
	} else {
		s.seqMu.Lock()
		s.lastSeq = max(s.lastSeq, l.maxSeq)
		s.seqMu.Unlock()
	}
	resetBusyTimeout(l.conn)
	l.conn.Close()

	if err != nil && l.types {
		if replayErr := s.replayTypes(bg); replayErr != nil {
			logger.Error("replaying types of %s: %v", s.path, replayErr)
		}
	}
	<-s.sem

	s.hub.PublishRemote(l.remote...)
	s.hub.PublishLocal(touched...)
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}
