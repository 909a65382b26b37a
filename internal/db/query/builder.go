package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// Builder evaluates queries against in-memory records for a single schema.
type Builder struct {
	schema *interfaces.Schema
}

// NewBuilder creates a new query builder for a schema.
func NewBuilder(schema *interfaces.Schema) *Builder {
	return &Builder{schema: schema}
}

// MatchesFilters reports whether a record satisfies the given filters.
func (b *Builder) MatchesFilters(record map[string]interface{}, filters *interfaces.Filters) bool {
	if filters == nil {
		return true
	}

	for _, andFilter := range filters.AND {
		if !b.MatchesFilters(record, andFilter) {
			return false
		}
	}

	if len(filters.OR) > 0 {
		hasMatch := false
		for _, orFilter := range filters.OR {
			if b.MatchesFilters(record, orFilter) {
				hasMatch = true
				break
			}
		}
		if !hasMatch {
			return false
		}
	}

	for _, condition := range filters.Conditions {
		if !b.matchesCondition(record, condition) {
			return false
		}
	}

	return true
}

func (b *Builder) matchesCondition(record map[string]interface{}, condition interfaces.Filter) bool {
	fieldValue, exists := record[condition.Field]

	// Plain equality when no operator is given.
	if condition.Operator == nil {
		if !exists && condition.Value == nil {
			return true
		}
		return fieldValue == condition.Value
	}

	op := condition.Operator

	if op.IsNull {
		return fieldValue == nil || !exists
	}
	if op.IsNotNull {
		return fieldValue != nil && exists
	}

	if !exists {
		return false
	}

	if op.Eq != nil {
		return fieldValue == op.Eq
	}
	if op.Ne != nil {
		return fieldValue != op.Ne
	}

	if len(op.In) > 0 {
		for _, val := range op.In {
			if fieldValue == val {
				return true
			}
		}
		return false
	}

	return false
}

// ApplySort orders records by the given sort fields, in order of priority.
func (b *Builder) ApplySort(records []map[string]interface{}, orderBy []interfaces.OrderBy) []map[string]interface{} {
	if len(orderBy) == 0 {
		return records
	}

	sorted := make([]map[string]interface{}, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		for _, ob := range orderBy {
			cmp := compareValues(sorted[i][ob.Field], sorted[j][ob.Field])
			if cmp == 0 {
				continue
			}
			if strings.EqualFold(ob.Direction, "desc") {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	return sorted
}

// ApplyPagination slices records according to limit and offset.
func (b *Builder) ApplyPagination(records []map[string]interface{}, limit, offset *int) []map[string]interface{} {
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start >= len(records) {
		return []map[string]interface{}{}
	}

	end := len(records)
	if limit != nil && *limit >= 0 && start+*limit < end {
		end = start + *limit
	}

	return records[start:end]
}

// ValidateData checks required fields and value types against the schema.
func (b *Builder) ValidateData(data map[string]interface{}) error {
	for fieldName, fieldSchema := range b.schema.Fields {
		value, exists := data[fieldName]

		if !exists || value == nil {
			if !fieldSchema.Nullable && !fieldSchema.PrimaryKey &&
				fieldSchema.DefaultValue == nil && !isTimestampField(fieldName) {
				return fmt.Errorf("%w: field %q is required", interfaces.ErrInvalidQuery, fieldName)
			}
			continue
		}

		if !valueMatchesType(value, fieldSchema.Type) {
			return fmt.Errorf("%w: field %q expects type %s, got %T",
				interfaces.ErrInvalidQuery, fieldName, fieldSchema.Type, value)
		}
	}

	for fieldName := range data {
		if _, known := b.schema.Fields[fieldName]; !known {
			return fmt.Errorf("%w: unknown field %q", interfaces.ErrInvalidQuery, fieldName)
		}
	}

	return nil
}

func isTimestampField(name string) bool {
	return name == "created_at" || name == "updated_at"
}

func valueMatchesType(value interface{}, fieldType string) bool {
	switch fieldType {
	case "string":
		_, ok := value.(string)
		return ok
	case "strings":
		_, ok := value.([]string)
		return ok
	case "int":
		switch value.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case "int64":
		switch value.(type) {
		case int, int64:
			return true
		}
		return false
	case "float64":
		_, ok := value.(float64)
		return ok
	case "bool":
		_, ok := value.(bool)
		return ok
	case "time":
		_, ok := value.(time.Time)
		return ok
	default:
		return true
	}
}

func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case !av && bv:
				return -1
			case av && !bv:
				return 1
			}
			return 0
		}
	}

	return 0
}
