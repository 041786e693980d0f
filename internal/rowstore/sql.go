package rowstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SQLRow stores one spreadsheet-style row. Row order is insertion order (ascending ID).
type SQLRow struct {
	ID    uint           `gorm:"primaryKey"`
	Sheet string         `gorm:"index;not null"`
	Cells datatypes.JSON `gorm:"not null"`
}

func (SQLRow) TableName() string { return "row_store" }

// SQL keeps tables in a relational database through gorm.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&SQLRow{}); err != nil {
		return nil, fmt.Errorf("migrate row store: %w", err)
	}
	return &SQL{db: db}, nil
}

// EnsureTable is a no-op: tables are a column value and header rows are not stored.
func (s *SQL) EnsureTable(context.Context, string, []string) error { return nil }

func (s *SQL) ReadRange(ctx context.Context, table string) ([][]string, error) {
	var rows []SQLRow
	if err := s.db.WithContext(ctx).Where("sheet = ?", table).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		var cells []string
		if err := json.Unmarshal(r.Cells, &cells); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", table, r.ID, err)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *SQL) AppendRow(ctx context.Context, table string, row []string) error {
	return s.AppendRows(ctx, table, [][]string{row})
}

func (s *SQL) AppendRows(ctx context.Context, table string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]SQLRow, 0, len(rows))
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		records = append(records, SQLRow{Sheet: table, Cells: datatypes.JSON(b)})
	}
	return s.db.WithContext(ctx).Create(&records).Error
}

func (s *SQL) UpdateRange(ctx context.Context, table string, rowIndex int, values []string) error {
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.rowID(tx, table, rowIndex)
		if err != nil {
			return err
		}
		return tx.Model(&SQLRow{}).Where("id = ?", id).Update("cells", datatypes.JSON(b)).Error
	})
}

func (s *SQL) DeleteRow(ctx context.Context, table string, rowIndex int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.rowID(tx, table, rowIndex)
		if err != nil {
			return err
		}
		return tx.Delete(&SQLRow{}, id).Error
	})
}

func (s *SQL) rowID(tx *gorm.DB, table string, rowIndex int) (uint, error) {
	if rowIndex < 0 {
		return 0, outOfRange(table, rowIndex, 0)
	}
	var ids []uint
	if err := tx.Model(&SQLRow{}).Where("sheet = ?", table).Order("id asc").Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if rowIndex >= len(ids) {
		return 0, outOfRange(table, rowIndex, len(ids))
	}
	return ids[rowIndex], nil
}
