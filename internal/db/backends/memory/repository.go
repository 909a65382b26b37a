package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"github.com/inkwell/inkwell-backend/internal/db/query"
)

// Repository implements interfaces.Repository on the in-memory database.
type Repository struct {
	db        *Database
	schema    *interfaces.Schema
	builder   *query.Builder
	tableName string
}

// NewRepository creates a repository bound to one schema.
func NewRepository(db *Database, schema *interfaces.Schema) *Repository {
	return &Repository{
		db:        db,
		schema:    schema,
		builder:   query.NewBuilder(schema),
		tableName: schema.TableName,
	}
}

func (r *Repository) GetByID(ctx context.Context, id interfaces.ID) (map[string]interface{}, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	table, exists := r.db.tables[r.tableName]
	if !exists {
		return nil, interfaces.ErrNotFound
	}

	record, exists := table[id.String()]
	if !exists {
		return nil, interfaces.ErrNotFound
	}

	return copyRecord(record), nil
}

func (r *Repository) FindOne(ctx context.Context, q *interfaces.Query) (map[string]interface{}, error) {
	if q == nil {
		q = &interfaces.Query{}
	}

	limit := 1
	q.Limit = &limit

	result, err := r.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, interfaces.ErrNotFound
	}

	return result.Data[0], nil
}

func (r *Repository) FindMany(ctx context.Context, q *interfaces.Query) (*interfaces.ResultPage, error) {
	if q == nil {
		q = &interfaces.Query{}
	}

	r.db.mu.RLock()
	table, exists := r.db.tables[r.tableName]
	var records []map[string]interface{}
	if exists {
		for _, record := range table {
			records = append(records, copyRecord(record))
		}
	}
	r.db.mu.RUnlock()

	if q.Where != nil {
		var filtered []map[string]interface{}
		for _, record := range records {
			if r.builder.MatchesFilters(record, q.Where) {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}

	total := int64(len(records))

	if len(q.OrderBy) > 0 {
		records = r.builder.ApplySort(records, q.OrderBy)
	}

	offset := 0
	if q.Offset != nil {
		offset = *q.Offset
	}
	pageSize := len(records)
	if q.Limit != nil {
		pageSize = *q.Limit
	}

	records = r.builder.ApplyPagination(records, q.Limit, q.Offset)
	if records == nil {
		records = []map[string]interface{}{}
	}

	page := 1
	if pageSize > 0 {
		page = (offset / pageSize) + 1
	}

	return &interfaces.ResultPage{
		Data:     records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (r *Repository) Create(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	if err := r.builder.ValidateData(data); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	record := copyRecord(data)

	if _, exists := record["id"]; !exists {
		record["id"] = uuid.New().String()
	}

	now := time.Now().UTC()
	record["created_at"] = now
	record["updated_at"] = now

	for fieldName, fieldSchema := range r.schema.Fields {
		if _, exists := record[fieldName]; !exists && fieldSchema.DefaultValue != nil {
			record[fieldName] = fieldSchema.DefaultValue
		}
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.tables[r.tableName]; !exists {
		r.db.tables[r.tableName] = make(map[string]map[string]interface{})
	}

	table := r.db.tables[r.tableName]
	id := record["id"].(string)

	if _, exists := table[id]; exists {
		return nil, fmt.Errorf("%w: id %q", interfaces.ErrUniqueConstraint, id)
	}

	if err := r.checkUniqueConstraints(table, record, ""); err != nil {
		return nil, err
	}
	if err := r.checkForeignKeys(record); err != nil {
		return nil, err
	}

	table[id] = record
	return copyRecord(record), nil
}

func (r *Repository) Update(ctx context.Context, id interfaces.ID, data map[string]interface{}) (map[string]interface{}, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	table, exists := r.db.tables[r.tableName]
	if !exists {
		return nil, interfaces.ErrNotFound
	}

	existing, exists := table[id.String()]
	if !exists {
		return nil, interfaces.ErrNotFound
	}

	updated := copyRecord(existing)
	for k, v := range data {
		updated[k] = v
	}
	updated["updated_at"] = time.Now().UTC()

	if err := r.checkUniqueConstraints(table, updated, id.String()); err != nil {
		return nil, err
	}
	if err := r.checkForeignKeys(updated); err != nil {
		return nil, err
	}

	table[id.String()] = updated
	return copyRecord(updated), nil
}

func (r *Repository) Delete(ctx context.Context, id interfaces.ID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	table, exists := r.db.tables[r.tableName]
	if !exists {
		return interfaces.ErrNotFound
	}
	if _, exists := table[id.String()]; !exists {
		return interfaces.ErrNotFound
	}

	r.cascadeDelete(id.String())

	delete(table, id.String())
	return nil
}

func (r *Repository) Count(ctx context.Context, q *interfaces.Query) (int64, error) {
	if q == nil {
		r.db.mu.RLock()
		defer r.db.mu.RUnlock()

		table, exists := r.db.tables[r.tableName]
		if !exists {
			return 0, nil
		}
		return int64(len(table)), nil
	}

	result, err := r.FindMany(ctx, &interfaces.Query{Where: q.Where})
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

func (r *Repository) GetSchema() *interfaces.Schema {
	return r.schema
}

func (r *Repository) checkUniqueConstraints(table map[string]map[string]interface{}, record map[string]interface{}, excludeID string) error {
	for fieldName, fieldSchema := range r.schema.Fields {
		if !fieldSchema.Unique {
			continue
		}

		value, exists := record[fieldName]
		if !exists || value == nil {
			continue
		}

		for id, existing := range table {
			if id == excludeID {
				continue
			}
			if existingValue, ok := existing[fieldName]; ok && existingValue == value {
				return fmt.Errorf("%w: field %q value %q", interfaces.ErrUniqueConstraint, fieldName, value)
			}
		}
	}

	for _, index := range r.schema.Indexes {
		if !index.Unique {
			continue
		}

		key := compositeKey(record, index.Columns)
		for id, existing := range table {
			if id == excludeID {
				continue
			}
			if compositeKey(existing, index.Columns) == key {
				return fmt.Errorf("%w: unique index %q", interfaces.ErrUniqueConstraint, index.Name)
			}
		}
	}

	return nil
}

func (r *Repository) checkForeignKeys(record map[string]interface{}) error {
	for fieldName, fieldSchema := range r.schema.Fields {
		if fieldSchema.ForeignKey == nil {
			continue
		}

		value, exists := record[fieldName]
		if !exists || value == nil {
			continue
		}

		refTable, exists := r.db.tables[fieldSchema.ForeignKey.Table]
		if !exists {
			return fmt.Errorf("%w: referenced table %q does not exist", interfaces.ErrForeignKeyConstraint, fieldSchema.ForeignKey.Table)
		}

		found := false
		for _, refRecord := range refTable {
			if refValue, ok := refRecord[fieldSchema.ForeignKey.Column]; ok && refValue == value {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: field %q references missing record %v", interfaces.ErrForeignKeyConstraint, fieldName, value)
		}
	}

	return nil
}

// cascadeDelete removes records in other tables whose CASCADE foreign keys
// point at the record being deleted.
func (r *Repository) cascadeDelete(id string) {
	for tableName, schema := range r.db.schemas {
		if tableName == r.tableName {
			continue
		}

		for fieldName, fieldSchema := range schema.Fields {
			fk := fieldSchema.ForeignKey
			if fk == nil || fk.Table != r.tableName || fk.OnDelete != "CASCADE" {
				continue
			}

			table := r.db.tables[tableName]
			for recordID, record := range table {
				if record[fieldName] == id {
					delete(table, recordID)
				}
			}
		}
	}
}

func compositeKey(record map[string]interface{}, columns []string) string {
	key := ""
	for _, column := range columns {
		key += fmt.Sprintf("%v\x00", record[column])
	}
	return key
}

func copyRecord(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}
