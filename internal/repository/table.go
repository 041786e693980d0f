// Package repository maps row store tables onto typed records. Nothing outside this package
// sees positional rows.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdg-garage/community-events-api/internal/rowstore"
)

var ErrNotFound = errors.New("record not found")

type codec[T any] interface {
	header() []string
	encode(T) []string
	decode([]string) (T, error)
	id(T) string
}

// table serializes its writes. Rows are addressed by position, so a locate and the write
// that follows it must not interleave with another write that shifts rows. There must be one
// table value per store table; the repositories in a Set satisfy that.
type table[T any] struct {
	store rowstore.Store
	name  string
	codec codec[T]
	mu    *sync.Mutex
}

func newTable[T any](store rowstore.Store, name string, c codec[T]) table[T] {
	return table[T]{store: store, name: name, codec: c, mu: &sync.Mutex{}}
}

func (t table[T]) ensure(ctx context.Context) error {
	return t.store.EnsureTable(ctx, t.name, t.codec.header())
}

func (t table[T]) list(ctx context.Context) ([]T, error) {
	rows, err := t.store.ReadRange(ctx, t.name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}
		v, err := t.codec.decode(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.name, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// locate returns the record with the given id and its current row index.
func (t table[T]) locate(ctx context.Context, id string) (T, int, error) {
	var zero T
	rows, err := t.store.ReadRange(ctx, t.name)
	if err != nil {
		return zero, 0, fmt.Errorf("read %s: %w", t.name, err)
	}
	for i, row := range rows {
		if get(row, 0) != id || id == "" {
			continue
		}
		v, err := t.codec.decode(row)
		if err != nil {
			return zero, 0, fmt.Errorf("%s row %d: %w", t.name, i, err)
		}
		return v, i, nil
	}
	return zero, 0, fmt.Errorf("%s %q: %w", t.name, id, ErrNotFound)
}

func (t table[T]) get(ctx context.Context, id string) (*T, error) {
	v, _, err := t.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (t table[T]) append(ctx context.Context, vs ...T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch len(vs) {
	case 0:
		return nil
	case 1:
		return t.store.AppendRow(ctx, t.name, t.codec.encode(vs[0]))
	}
	rows := make([][]string, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, t.codec.encode(v))
	}
	return t.store.AppendRows(ctx, t.name, rows)
}

func (t table[T]) update(ctx context.Context, v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, idx, err := t.locate(ctx, t.codec.id(v))
	if err != nil {
		return err
	}
	return t.store.UpdateRange(ctx, t.name, idx, t.codec.encode(v))
}

func (t table[T]) delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, idx, err := t.locate(ctx, id)
	if err != nil {
		return err
	}
	return t.store.DeleteRow(ctx, t.name, idx)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
