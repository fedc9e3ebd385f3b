package spirit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chrisrobison/ouija/internal/logging"
	"github.com/chrisrobison/ouija/internal/metrics"
	"github.com/chrisrobison/ouija/internal/store"
)

// ErrValidation marks malformed records and missing request parameters.
var ErrValidation = errors.New("validation error")

// StorageError is a failure at the storage boundary. It is fatal for the
// request that hit it.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store reads and writes spirit records over a keyed backend. Reads are
// self-healing: records that fail validation are deleted and reported absent.
type Store struct {
	backend store.Backend
	logger  *slog.Logger

	// pointerMu makes "write record, then repoint" and switches atomic
	// with respect to each other.
	pointerMu sync.Mutex
}

// NewStore wraps backend.
func NewStore(backend store.Backend) *Store {
	return &Store{
		backend: backend,
		logger:  logging.WithComponent("spirit-store"),
	}
}

// Put serializes rec and replaces whatever is stored under its id.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	data, err := rec.encode()
	if err != nil {
		return &StorageError{Op: "encode", ID: rec.ID, Err: err}
	}
	if err := s.backend.Write(ctx, rec.ID, data); err != nil {
		return &StorageError{Op: "write", ID: rec.ID, Err: err}
	}
	return nil
}

// Get returns the record stored under id. ok is false when nothing valid is
// stored there; an invalid record is deleted on the way.
func (s *Store) Get(ctx context.Context, id string) (rec *Record, ok bool, err error) {
	data, err := s.backend.Read(ctx, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidKey) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "read", ID: id, Err: err}
	}

	rec, err = decodeRecord(data)
	if err != nil {
		if perr := s.purge(ctx, id, err); perr != nil {
			return nil, false, perr
		}
		return nil, false, nil
	}
	return rec, true, nil
}

func (s *Store) purge(ctx context.Context, id string, reason error) error {
	s.logger.Warn("deleting invalid spirit record", "id", id, "reason", reason)
	if err := s.backend.Delete(ctx, id); err != nil {
		return &StorageError{Op: "delete", ID: id, Err: err}
	}
	metrics.RecordsPurged.Inc()
	return nil
}

// Exists reports whether a record is stored under id, valid or not.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.backend.Read(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidKey):
		return false, nil
	default:
		return false, &StorageError{Op: "read", ID: id, Err: err}
	}
}

// ListValid returns every valid record in backend key order.
func (s *Store) ListValid(ctx context.Context) ([]*Record, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		rec, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Sweep deletes every invalid record and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return 0, &StorageError{Op: "list", Err: err}
	}
	purged := 0
	for _, key := range keys {
		data, err := s.backend.Read(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return purged, &StorageError{Op: "read", ID: key, Err: err}
		}
		if _, err := decodeRecord(data); err != nil {
			if perr := s.purge(ctx, key, err); perr != nil {
				return purged, perr
			}
			purged++
		}
	}
	return purged, nil
}

// CurrentID returns the id the pointer names. ok is false when no pointer
// has been written yet.
func (s *Store) CurrentID(ctx context.Context) (id string, ok bool, err error) {
	id, err = s.backend.ReadPointer(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "read pointer", Err: err}
	}
	return id, true, nil
}

// SetCurrentID repoints the current spirit.
func (s *Store) SetCurrentID(ctx context.Context, id string) error {
	s.pointerMu.Lock()
	defer s.pointerMu.Unlock()
	return s.setCurrentLocked(ctx, id)
}

func (s *Store) setCurrentLocked(ctx context.Context, id string) error {
	if err := s.backend.WritePointer(ctx, id); err != nil {
		return &StorageError{Op: "write pointer", ID: id, Err: err}
	}
	return nil
}

// Activate stores rec and makes it current as one step.
func (s *Store) Activate(ctx context.Context, rec *Record) error {
	s.pointerMu.Lock()
	defer s.pointerMu.Unlock()
	if err := s.Put(ctx, rec); err != nil {
		return err
	}
	return s.setCurrentLocked(ctx, rec.ID)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
