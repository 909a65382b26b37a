package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// SQLSTATE codes translated into the shared sentinel errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Repository implements interfaces.Repository with generated SQL against a
// single table.
type Repository struct {
	db        *Database
	schema    *interfaces.Schema
	tableName string
	columns   []string
}

// NewRepository creates a repository bound to one schema.
func NewRepository(db *Database, schema *interfaces.Schema) *Repository {
	columns := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	return &Repository{
		db:        db,
		schema:    schema,
		tableName: schema.TableName,
		columns:   columns,
	}
}

func (r *Repository) GetByID(ctx context.Context, id interfaces.ID) (map[string]interface{}, error) {
	pool := r.db.getPool()
	if pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", strings.Join(r.columns, ", "), r.tableName)
	rows, err := pool.Query(ctx, sql, id.String())
	if err != nil {
		return nil, translateError("get", err)
	}

	record, err := pgx.CollectOneRow(rows, r.rowToRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, translateError("get", err)
	}
	return record, nil
}

func (r *Repository) FindOne(ctx context.Context, q *interfaces.Query) (map[string]interface{}, error) {
	if q == nil {
		q = &interfaces.Query{}
	}

	limit := 1
	q.Limit = &limit

	page, err := r.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return page.Data[0], nil
}

func (r *Repository) FindMany(ctx context.Context, q *interfaces.Query) (*interfaces.ResultPage, error) {
	pool := r.db.getPool()
	if pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}
	if q == nil {
		q = &interfaces.Query{}
	}

	where, args := buildWhere(q.Where, 1)

	total, err := r.countWhere(ctx, where, args)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(r.columns, ", "), r.tableName, where)
	if len(q.OrderBy) > 0 {
		orders := make([]string, 0, len(q.OrderBy))
		for _, ob := range q.OrderBy {
			dir := "ASC"
			if strings.EqualFold(ob.Direction, "desc") {
				dir = "DESC"
			}
			orders = append(orders, ob.Field+" "+dir)
		}
		sql += " ORDER BY " + strings.Join(orders, ", ")
	}

	offset := 0
	if q.Offset != nil && *q.Offset > 0 {
		offset = *q.Offset
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}
	pageSize := int(total)
	if q.Limit != nil && *q.Limit >= 0 {
		pageSize = *q.Limit
		sql += fmt.Sprintf(" LIMIT %d", pageSize)
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError("find", err)
	}

	records, err := pgx.CollectRows(rows, r.rowToRecord)
	if err != nil {
		return nil, translateError("find", err)
	}
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
	pool := r.db.getPool()
	if pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}

	record := make(map[string]interface{}, len(data)+3)
	for k, v := range data {
		record[k] = v
	}
	if _, exists := record["id"]; !exists {
		record["id"] = uuid.New().String()
	}
	now := time.Now().UTC()
	record["created_at"] = now
	record["updated_at"] = now

	cols := make([]string, 0, len(record))
	for name := range record {
		if _, known := r.schema.Fields[name]; !known {
			return nil, fmt.Errorf("%w: unknown field %q", interfaces.ErrInvalidQuery, name)
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, name := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[name]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		r.tableName, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		strings.Join(r.columns, ", "))

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError("create", err)
	}

	created, err := pgx.CollectOneRow(rows, r.rowToRecord)
	if err != nil {
		return nil, translateError("create", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, id interfaces.ID, data map[string]interface{}) (map[string]interface{}, error) {
	pool := r.db.getPool()
	if pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}

	cols := make([]string, 0, len(data))
	for name := range data {
		if _, known := r.schema.Fields[name]; !known {
			return nil, fmt.Errorf("%w: unknown field %q", interfaces.ErrInvalidQuery, name)
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)
	for i, name := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", name, i+1))
		args = append(args, data[name])
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(cols)+1))
	args = append(args, time.Now().UTC())
	args = append(args, id.String())

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING %s",
		r.tableName, strings.Join(sets, ", "), len(args), strings.Join(r.columns, ", "))

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError("update", err)
	}

	updated, err := pgx.CollectOneRow(rows, r.rowToRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, translateError("update", err)
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id interfaces.ID) error {
	pool := r.db.getPool()
	if pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	tag, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.tableName), id.String())
	if err != nil {
		return translateError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context, q *interfaces.Query) (int64, error) {
	var where string
	var args []interface{}
	if q != nil {
		where, args = buildWhere(q.Where, 1)
	}
	return r.countWhere(ctx, where, args)
}

func (r *Repository) GetSchema() *interfaces.Schema {
	return r.schema
}

func (r *Repository) countWhere(ctx context.Context, where string, args []interface{}) (int64, error) {
	pool := r.db.getPool()
	if pool == nil {
		return 0, interfaces.ErrDatabaseNotConnected
	}

	var total int64
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.tableName, where)
	if err := pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, translateError("count", err)
	}
	return total, nil
}

func (r *Repository) rowToRecord(row pgx.CollectableRow) (map[string]interface{}, error) {
	values, err := row.Values()
	if err != nil {
		return nil, err
	}

	record := make(map[string]interface{}, len(values))
	for i, fd := range row.FieldDescriptions() {
		record[fd.Name] = normalizeValue(values[i])
	}
	return record, nil
}

// normalizeValue maps driver types onto the value shapes the rest of the
// code expects (text[] as []string, timestamptz as UTC time.Time).
func normalizeValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case time.Time:
		return tv.UTC()
	default:
		return v
	}
}

// buildWhere renders a Filters tree into a WHERE clause with numbered
// placeholders starting at startIdx.
func buildWhere(filters *interfaces.Filters, startIdx int) (string, []interface{}) {
	clause, args := renderFilters(filters, &startIdx)
	if clause == "" {
		return "", nil
	}
	return " WHERE " + clause, args
}

func renderFilters(filters *interfaces.Filters, idx *int) (string, []interface{}) {
	if filters == nil {
		return "", nil
	}

	var parts []string
	var args []interface{}

	for _, condition := range filters.Conditions {
		clause, conditionArgs := renderCondition(condition, idx)
		if clause != "" {
			parts = append(parts, clause)
			args = append(args, conditionArgs...)
		}
	}

	for _, and := range filters.AND {
		clause, andArgs := renderFilters(and, idx)
		if clause != "" {
			parts = append(parts, "("+clause+")")
			args = append(args, andArgs...)
		}
	}

	if len(filters.OR) > 0 {
		var orParts []string
		for _, or := range filters.OR {
			clause, orArgs := renderFilters(or, idx)
			if clause != "" {
				orParts = append(orParts, "("+clause+")")
				args = append(args, orArgs...)
			}
		}
		if len(orParts) > 0 {
			parts = append(parts, "("+strings.Join(orParts, " OR ")+")")
		}
	}

	return strings.Join(parts, " AND "), args
}

func renderCondition(condition interfaces.Filter, idx *int) (string, []interface{}) {
	next := func() string {
		p := fmt.Sprintf("$%d", *idx)
		*idx++
		return p
	}

	if condition.Operator == nil {
		if condition.Value == nil {
			return condition.Field + " IS NULL", nil
		}
		return condition.Field + " = " + next(), []interface{}{condition.Value}
	}

	op := condition.Operator
	switch {
	case op.IsNull:
		return condition.Field + " IS NULL", nil
	case op.IsNotNull:
		return condition.Field + " IS NOT NULL", nil
	case op.Eq != nil:
		return condition.Field + " = " + next(), []interface{}{op.Eq}
	case op.Ne != nil:
		return condition.Field + " <> " + next(), []interface{}{op.Ne}
	case len(op.In) > 0:
		placeholders := make([]string, len(op.In))
		for i := range op.In {
			placeholders[i] = next()
		}
		return condition.Field + " IN (" + strings.Join(placeholders, ", ") + ")", op.In
	default:
		return "", nil
	}
}

func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", interfaces.ErrUniqueConstraint, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", interfaces.ErrForeignKeyConstraint, pgErr.ConstraintName)
		}
	}
	return &interfaces.DatabaseError{Op: op, Err: err}
}
