package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/eventlog/config"
	"example.com/backstage/services/eventlog/internal/cache"
	"example.com/backstage/services/eventlog/internal/database"
	"example.com/backstage/services/eventlog/internal/event"
	"example.com/backstage/services/eventlog/internal/metrics"
	"example.com/backstage/services/eventlog/internal/models"
	"example.com/backstage/services/eventlog/internal/query"
	"example.com/backstage/services/eventlog/internal/tracing"
)

// Result caps applied when a filter carries no limit of its own
const (
	DefaultQueryLimit  = 10000
	DefaultDeleteLimit = 999
)

const (
	selectByID  = "SELECT id, pubkey, created_at, kind, payload, deleted FROM events WHERE id = $1"
	markDeleted = "UPDATE events SET deleted = TRUE WHERE id = ANY ($1) AND deleted = FALSE"
)

// PayloadCache caches encoded payloads of live events
type PayloadCache interface {
	GetPayload(ctx context.Context, id event.ID) ([]byte, error)
	SetPayload(ctx context.Context, id event.ID, payload []byte) error
	Invalidate(ctx context.Context, ids ...event.ID) error
}

// Store persists events in Postgres. It is safe for concurrent use; all
// coordination happens in the database.
type Store struct {
	db          *gorm.DB
	cache       PayloadCache
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
	queryLimit  int
	deleteLimit int
}

// Option configures a Store
type Option func(*Store)

// WithCache serves Get from c before reaching the database
func WithCache(c PayloadCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithMetrics records per-operation timings and outcomes in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithTracer runs each operation inside a transaction of t
func WithTracer(t tracing.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithQueryLimit sets the cap used by Query for filters without a limit
func WithQueryLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.queryLimit = limit
		}
	}
}

// WithDeleteLimit sets the cap used by Delete for filters without a limit
func WithDeleteLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.deleteLimit = limit
		}
	}
}

// New creates a store over an existing pool. The schema is assumed to exist.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		tracer:      tracing.Noop(),
		queryLimit:  DefaultQueryLimit,
		deleteLimit: DefaultDeleteLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to Postgres, ensures the schema and returns a ready store.
// A schema failure closes the pool and is returned to the caller.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Store, error) {
	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, errors.Wrap(err, "failed to ensure schema")
	}

	opts = append([]Option{
		WithQueryLimit(cfg.Store.QueryLimit),
		WithDeleteLimit(cfg.Store.DeleteLimit),
	}, opts...)
	return New(db, opts...), nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return database.Close(s.db)
}

// Stats exposes the connection pool statistics
func (s *Store) Stats() sql.DBStats {
	sqlDB, err := s.db.DB()
	if err != nil {
		return sql.DBStats{}
	}
	return sqlDB.Stats()
}

// Ping verifies a connection can be acquired and used
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return backend(err, "failed to get DB instance")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return backend(err, "failed to ping database")
	}
	return nil
}

// observe starts a traced operation and returns the function that ends it
func (s *Store) observe(op string) (*newrelic.Transaction, func(error)) {
	name := "store." + op
	start := time.Now()
	txn := s.tracer.StartTransaction(name)
	return txn, func(err error) {
		s.metrics.Observe(name, start, err)
		s.tracer.RecordError(txn, err)
		s.tracer.EndTransaction(txn)
	}
}

// Save persists e and its indexable tags atomically. An event whose id is
// already stored, deleted or not, is rejected as a duplicate.
func (s *Store) Save(ctx context.Context, e event.Event) (status SaveStatus, err error) {
	txn, done := s.observe("save")
	defer func() { done(err) }()
	s.tracer.AddAttribute(txn, "event.id", e.ID.String())

	rec := models.FromEvent(e)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, backend(tx.Error, "failed to begin transaction")
	}

	seg := s.tracer.StartSpan("insert_event", txn)
	err = tx.Create(&rec.Event).Error
	seg.End()
	if err != nil {
		tx.Rollback()
		if isDuplicate(err) {
			return s.rejectDuplicate(e.ID, err), nil
		}
		return 0, backend(err, "failed to insert event")
	}

	seg = s.tracer.StartSpan("insert_tags", txn)
	for i := range rec.Tags {
		if err := tx.Create(&rec.Tags[i]).Error; err != nil {
			seg.End()
			tx.Rollback()
			return 0, backend(err, "failed to insert event tag")
		}
	}
	seg.End()

	// the primary key conflict of a concurrent save surfaces here
	seg = s.tracer.StartSpan("commit", txn)
	err = tx.Commit().Error
	seg.End()
	if err != nil {
		return s.rejectDuplicate(e.ID, err), nil
	}

	s.metrics.IncrementCounter("events.saved")
	log.Debug().
		Str("event_id", e.ID.String()).
		Int("tags", len(rec.Tags)).
		Msg("Event saved")

	return SaveAccepted, nil
}

func (s *Store) rejectDuplicate(id event.ID, cause error) SaveStatus {
	s.metrics.IncrementCounter("events.duplicate")
	log.Debug().
		Err(cause).
		Str("event_id", id.String()).
		Msg("Event rejected as duplicate")
	return SaveRejectedDuplicate
}

func (s *Store) lookup(ctx context.Context, id event.ID) (*models.EventRow, error) {
	var rows []models.EventRow
	if err := s.db.WithContext(ctx).Raw(selectByID, id.Bytes()).Scan(&rows).Error; err != nil {
		return nil, backend(err, "failed to look up event")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CheckStatus reports whether id was never stored, is live, or was deleted
func (s *Store) CheckStatus(ctx context.Context, id event.ID) (status Status, err error) {
	_, done := s.observe("check_status")
	defer func() { done(err) }()

	row, err := s.lookup(ctx, id)
	if err != nil {
		return StatusNotExistent, err
	}

	switch {
	case row == nil:
		return StatusNotExistent, nil
	case row.Deleted:
		return StatusDeleted, nil
	default:
		return StatusSaved, nil
	}
}

// Get returns the live event with the given id, or nil when it does not
// exist or was deleted. A stored payload that cannot be decoded yields a
// *codec.DecodeError.
func (s *Store) Get(ctx context.Context, id event.ID) (ev *event.Event, err error) {
	_, done := s.observe("get")
	defer func() { done(err) }()

	if e, ok := s.cached(ctx, id); ok {
		return &e, nil
	}

	row, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil || row.Deleted {
		return nil, nil
	}

	e, err := row.Decode()
	if err != nil {
		return nil, err
	}

	s.fillCache(ctx, id, row.Payload)
	return &e, nil
}

// fillCache caches the payload of a live event. The status is read again
// after the write: a Delete that committed in between has already run its
// invalidation, so the entry written here is dropped instead.
func (s *Store) fillCache(ctx context.Context, id event.ID, payload []byte) {
	if s.cache == nil {
		return
	}

	if err := s.cache.SetPayload(ctx, id, payload); err != nil {
		log.Warn().Err(err).Str("event_id", id.String()).Msg("Failed to cache event payload")
		return
	}

	row, err := s.lookup(ctx, id)
	if err == nil && row != nil && !row.Deleted {
		return
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Warn().Err(err).Str("event_id", id.String()).Msg("Failed to drop cached payload")
	}
}

func (s *Store) cached(ctx context.Context, id event.ID) (event.Event, bool) {
	if s.cache == nil {
		return event.Event{}, false
	}

	payload, err := s.cache.GetPayload(ctx, id)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("event_id", id.String()).Msg("Failed to read payload cache")
		}
		s.metrics.IncrementCounter("cache.miss")
		return event.Event{}, false
	}

	e, err := models.EventRow{Payload: payload}.Decode()
	if err != nil {
		log.Warn().Err(err).Str("event_id", id.String()).Msg("Discarding undecodable cached payload")
		return event.Event{}, false
	}

	s.metrics.IncrementCounter("cache.hit")
	return e, true
}

// Count returns the number of live events matching f. A filter limit caps
// the count. Database failures are logged and reported as zero matches; only
// a done context returns an error.
func (s *Store) Count(ctx context.Context, f event.Filter) (n int, err error) {
	_, done := s.observe("count")
	defer func() { done(err) }()

	stmt, args := query.Compile(query.SelectEventIDs, f)

	var count int64
	if err := s.db.WithContext(ctx).Raw(query.Count(stmt), args...).Scan(&count).Error; err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		log.Warn().Err(err).Msg("Count failed, reporting zero matches")
		return 0, nil
	}

	return int(count), nil
}

// Query returns the live events matching f, newest first and unique by id.
// Without a limit at most the configured query limit is returned. Rows whose
// payload cannot be decoded are skipped.
func (s *Store) Query(ctx context.Context, f event.Filter) (events []event.Event, err error) {
	txn, done := s.observe("query")
	defer func() { done(err) }()

	stmt, args := query.Compile(query.SelectEvents, f.WithDefaultLimit(s.queryLimit))

	var rows []models.EventRow
	seg := s.tracer.StartSpan("select_events", txn)
	err = s.db.WithContext(ctx).Raw(stmt, args...).Scan(&rows).Error
	seg.End()
	if err != nil {
		return nil, backend(err, "failed to query events")
	}

	events = make([]event.Event, 0, len(rows))
	seen := make(map[event.ID]struct{}, len(rows))
	for _, row := range rows {
		e, err := row.Decode()
		if err != nil {
			s.metrics.IncrementCounter("events.corrupt")
			log.Warn().Err(err).Hex("event_id", row.ID).Msg("Skipping undecodable event")
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		events = append(events, e)
	}

	s.tracer.AddAttribute(txn, "events.matched", len(events))
	return events, nil
}

// Delete marks the live events matching f as deleted. Without a limit at
// most the configured delete limit is affected per call. Deleted events
// keep their rows, so their ids can never be saved again.
func (s *Store) Delete(ctx context.Context, f event.Filter) (err error) {
	txn, done := s.observe("delete")
	defer func() { done(err) }()

	seg := s.tracer.StartSpan("select_ids", txn)
	ids, err := s.matchingIDs(ctx, f.WithDefaultLimit(s.deleteLimit))
	seg.End()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Debug().Msg("Delete matched no events")
		return nil
	}

	batchID := uuid.New()
	s.tracer.AddAttribute(txn, "delete.batch_id", batchID.String())

	raw := make([][]byte, len(ids))
	for i, id := range ids {
		raw[i] = id.Bytes()
	}

	seg = s.tracer.StartSpan("mark_deleted", txn)
	res := s.db.WithContext(ctx).Exec(markDeleted, raw)
	seg.End()
	if res.Error != nil {
		return backend(res.Error, "failed to mark events deleted")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ids...); err != nil {
			log.Warn().Err(err).Str("batch_id", batchID.String()).Msg("Failed to invalidate cached payloads")
		}
	}

	s.metrics.IncrementCounterBy("events.deleted", res.RowsAffected)
	log.Info().
		Str("batch_id", batchID.String()).
		Int("matched", len(ids)).
		Int64("deleted", res.RowsAffected).
		Msg("Events deleted")

	return nil
}

func (s *Store) matchingIDs(ctx context.Context, f event.Filter) ([]event.ID, error) {
	stmt, args := query.Compile(query.SelectEventIDs, f)

	rows, err := s.db.WithContext(ctx).Raw(stmt, args...).Rows()
	if err != nil {
		return nil, backend(err, "failed to select events to delete")
	}
	defer rows.Close()

	var ids []event.ID
	for rows.Next() {
		var (
			raw       []byte
			createdAt int64
		)
		if err := rows.Scan(&raw, &createdAt); err != nil {
			return nil, backend(err, "failed to scan event id")
		}
		id, err := event.IDFromBytes(raw)
		if err != nil {
			return nil, backend(err, "malformed event id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, backend(err, "failed to read event ids")
	}
	return ids, nil
}

// Wipe is not supported; events are only ever soft-deleted
func (s *Store) Wipe(ctx context.Context) error {
	return ErrNotSupported
}
