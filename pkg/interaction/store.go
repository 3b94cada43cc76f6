package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/teslashibe/go-callassist/pkg/session"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("interaction: not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Store saves and lists interactions.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}

// GormStore is a Store backed by gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. Use ":memory:" for a throwaway database.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("interaction: open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("interaction: open %s: %w", path, err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases
	// shared across queries.
	sqlDB.SetMaxOpenConns(1)

	return NewGormStore(db)
}

// NewGormStore wraps an open database and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("interaction: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Save inserts r.
func (s *GormStore) Save(ctx context.Context, r *Record) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("interaction: save %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the record with the given id.
func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("interaction: get %s: %w", id, err)
	}
	return &r, nil
}

// List returns the most recent records, newest first.
func (s *GormStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []Record
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("interaction: list: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Saver stores session outcomes in the background.
type Saver struct {
	store      Store
	clientName string
	timeout    time.Duration
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NewSaver returns a Saver writing to store. Each write is bounded by
// timeout.
func NewSaver(store Store, clientName string, timeout time.Duration, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		store:      store,
		clientName: clientName,
		timeout:    timeout,
		logger:     logger.With("component", "interaction"),
	}
}

// Save is an OnComplete hook. It queues o for storage and returns at once.
// Failures are logged and never reach the engine.
func (s *Saver) Save(o *session.Outcome) {
	r, err := FromOutcome(o, s.clientName)
	if err != nil {
		s.logger.Warn("interaction not saved", "session_id", o.SessionID, "error", err)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.store.Save(ctx, r); err != nil {
			s.logger.Warn("interaction not saved", "session_id", o.SessionID, "error", err)
			return
		}
		s.logger.Info("interaction saved", "session_id", o.SessionID, "id", r.ID)
	}()
}

// Wait blocks until every queued save has finished or ctx is done.
func (s *Saver) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
