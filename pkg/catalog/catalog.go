// Package catalog keeps a local history of conversions in a pebble
// database. Entries are keyed by KSUID, so key order is creation order.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/bagvrs/pkg/convert"
)

var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrClosed is returned by operations on a closed catalog.
	ErrClosed = errors.New("catalog is closed")
)

// Status of a recorded conversion.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

var (
	entryPrefix  = []byte("e/")
	outputPrefix = []byte("o/")
)

// Entry is one recorded conversion.
type Entry struct {
	ID        ksuid.KSUID     `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Mapping   string          `json:"mapping"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Result    *convert.Result `json:"result,omitempty"`
}

// NewEntry describes the outcome of one conversion. A non-nil err marks
// the entry failed, or canceled when err is a context error.
func NewEntry(input, output, mapping string, res *convert.Result, err error) Entry {
	e := Entry{Input: input, Output: output, Mapping: mapping, Status: StatusSuccess, Result: res}
	if err != nil {
		e.Status = StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.Status = StatusCanceled
		}
		e.Error = err.Error()
		e.Result = nil
	}
	return e
}

// Catalog stores conversion entries.
type Catalog struct {
	db *pebble.DB
}

// Open opens or creates the catalog in dir.
func Open(dir string) (*Catalog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", dir, err)
	}
	return &Catalog{db: db}, nil
}

// Add stores e under a new id and returns it. CreatedAt is taken from the
// id when unset.
func (c *Catalog) Add(e Entry) (*Entry, error) {
	if c.db == nil {
		return nil, ErrClosed
	}
	id, err := ksuid.NewRandom()
	if err != nil {
		return nil, err
	}
	e.ID = id
	if e.CreatedAt.IsZero() {
		e.CreatedAt = id.Time().UTC()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}

	b := c.db.NewBatch()
	defer b.Close()
	if err := b.Set(entryKey(id), data, nil); err != nil {
		return nil, err
	}
	if e.Output != "" {
		if err := b.Set(outputKey(e.Output), id.Bytes(), nil); err != nil {
			return nil, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("write entry: %w", err)
	}
	return &e, nil
}

// Get returns the entry with id.
func (c *Catalog) Get(id ksuid.KSUID) (*Entry, error) {
	if c.db == nil {
		return nil, ErrClosed
	}
	data, closer, err := c.db.Get(entryKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return decodeEntry(data)
}

// Lookup parses id and returns its entry.
func (c *Catalog) Lookup(id string) (*Entry, error) {
	kid, err := ksuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.Get(kid)
}

// LatestForOutput returns the most recent entry that wrote path.
func (c *Catalog) LatestForOutput(path string) (*Entry, error) {
	if c.db == nil {
		return nil, ErrClosed
	}
	data, closer, err := c.db.Get(outputKey(path))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: output %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	id, err := ksuid.FromBytes(data)
	closer.Close()
	if err != nil {
		return nil, fmt.Errorf("output index for %s: %w", path, err)
	}
	return c.Get(id)
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (c *Catalog) List(limit int) ([]*Entry, error) {
	if c.db == nil {
		return nil, ErrClosed
	}
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: entryPrefix,
		UpperBound: prefixEnd(entryPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Entry
	for valid := iter.Last(); valid; valid = iter.Prev() {
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, iter.Error()
}

// Delete removes the entry with id. Deleting a missing entry is not an
// error.
func (c *Catalog) Delete(id ksuid.KSUID) error {
	if c.db == nil {
		return ErrClosed
	}
	e, err := c.Get(id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	b := c.db.NewBatch()
	defer b.Close()
	if err := b.Delete(entryKey(id), nil); err != nil {
		return err
	}
	if latest, err := c.LatestForOutput(e.Output); err == nil && latest.ID == id {
		if err := b.Delete(outputKey(e.Output), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func entryKey(id ksuid.KSUID) []byte {
	return append(append([]byte{}, entryPrefix...), id.Bytes()...)
}

func outputKey(path string) []byte {
	return append(append([]byte{}, outputPrefix...), path...)
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	end[len(end)-1]++
	return end
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}
