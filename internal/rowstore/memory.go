package rowstore

import (
	"context"
	"sync"
)

// Memory keeps tables in process memory.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][][]string
}

func NewMemory() *Memory {
	return &Memory{tables: map[string][][]string{}}
}

func (m *Memory) EnsureTable(_ context.Context, table string, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = nil
	}
	return nil
}

func (m *Memory) ReadRange(_ context.Context, table string) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[table]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *Memory) AppendRow(ctx context.Context, table string, row []string) error {
	return m.AppendRows(ctx, table, [][]string{row})
}

func (m *Memory) AppendRows(_ context.Context, table string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], append([]string(nil), r...))
	}
	return nil
}

func (m *Memory) UpdateRange(_ context.Context, table string, rowIndex int, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return outOfRange(table, rowIndex, len(rows))
	}
	rows[rowIndex] = append([]string(nil), values...)
	return nil
}

func (m *Memory) DeleteRow(_ context.Context, table string, rowIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return outOfRange(table, rowIndex, len(rows))
	}
	m.tables[table] = append(rows[:rowIndex], rows[rowIndex+1:]...)
	return nil
}
