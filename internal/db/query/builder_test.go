package query

import (
	"testing"
	"time"

	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"github.com/stretchr/testify/assert"
)

var testSchema = &interfaces.Schema{
	TableName: "things",
	Fields: map[string]interfaces.FieldSchema{
		"id":         {Type: "string", PrimaryKey: true},
		"name":       {Type: "string"},
		"rank":       {Type: "int", Nullable: true},
		"labels":     {Type: "strings", Nullable: true},
		"note":       {Type: "string", Nullable: true},
		"kind":       {Type: "string", DefaultValue: "plain"},
		"created_at": {Type: "time"},
		"updated_at": {Type: "time"},
	},
}

func TestMatchesFiltersEquality(t *testing.T) {
	b := NewBuilder(testSchema)
	rec := map[string]interface{}{"name": "alpha", "rank": 3}

	assert.True(t, b.MatchesFilters(rec, nil))
	assert.True(t, b.MatchesFilters(rec, &interfaces.Filters{
		Conditions: []interfaces.Filter{{Field: "name", Value: "alpha"}},
	}))
	assert.False(t, b.MatchesFilters(rec, &interfaces.Filters{
		Conditions: []interfaces.Filter{{Field: "name", Value: "beta"}},
	}))
}

func TestMatchesFiltersOperators(t *testing.T) {
	b := NewBuilder(testSchema)
	rec := map[string]interface{}{"name": "alpha", "note": nil}

	assert.True(t, b.MatchesFilters(rec, &interfaces.Filters{
		Conditions: []interfaces.Filter{{Field: "name", Operator: &interfaces.FilterOperator{Ne: "beta"}}},
	}))
	assert.False(t, b.MatchesFilters(rec, &interfaces.Filters{
		Conditions: []interfaces.Filter{{Field: "name", Operator: &interfaces.FilterOperator{Ne: "alpha"}}},
	}))
	assert.True(t, b.MatchesFilters(rec, &interfaces.Filters{
		Conditions: []interfaces.Filter{{Field: "name", Operator: &interfaces.FilterOperator{In: []interface{}{"alpha", "beta"}}}},
	}))
	assert.True(t, b.MatchesFilters(rec, &interfaces.Filters{
		Conditions: []interfaces.Filter{{Field: "note", Operator: &interfaces.FilterOperator{IsNull: true}}},
	}))
	assert.True(t, b.MatchesFilters(rec, &interfaces.Filters{
		Conditions: []interfaces.Filter{{Field: "name", Operator: &interfaces.FilterOperator{IsNotNull: true}}},
	}))
}

func TestMatchesFiltersComposition(t *testing.T) {
	b := NewBuilder(testSchema)
	rec := map[string]interface{}{"name": "alpha", "rank": 3}

	// AND of two matching groups.
	assert.True(t, b.MatchesFilters(rec, &interfaces.Filters{
		AND: []*interfaces.Filters{
			{Conditions: []interfaces.Filter{{Field: "name", Value: "alpha"}}},
			{Conditions: []interfaces.Filter{{Field: "rank", Value: 3}}},
		},
	}))

	// OR needs only one branch.
	assert.True(t, b.MatchesFilters(rec, &interfaces.Filters{
		OR: []*interfaces.Filters{
			{Conditions: []interfaces.Filter{{Field: "name", Value: "zzz"}}},
			{Conditions: []interfaces.Filter{{Field: "rank", Value: 3}}},
		},
	}))
	assert.False(t, b.MatchesFilters(rec, &interfaces.Filters{
		OR: []*interfaces.Filters{
			{Conditions: []interfaces.Filter{{Field: "name", Value: "zzz"}}},
			{Conditions: []interfaces.Filter{{Field: "rank", Value: 9}}},
		},
	}))
}

func TestApplySort(t *testing.T) {
	b := NewBuilder(testSchema)
	now := time.Now()

	records := []map[string]interface{}{
		{"name": "b", "created_at": now.Add(time.Second)},
		{"name": "a", "created_at": now.Add(2 * time.Second)},
		{"name": "c", "created_at": now},
	}

	byName := b.ApplySort(records, []interfaces.OrderBy{{Field: "name", Direction: "asc"}})
	assert.Equal(t, "a", byName[0]["name"])
	assert.Equal(t, "c", byName[2]["name"])

	byTimeDesc := b.ApplySort(records, []interfaces.OrderBy{{Field: "created_at", Direction: "desc"}})
	assert.Equal(t, "a", byTimeDesc[0]["name"])
	assert.Equal(t, "c", byTimeDesc[2]["name"])

	// Input order is untouched.
	assert.Equal(t, "b", records[0]["name"])
}

func TestApplyPagination(t *testing.T) {
	b := NewBuilder(testSchema)
	records := []map[string]interface{}{
		{"name": "a"}, {"name": "b"}, {"name": "c"}, {"name": "d"},
	}

	limit, offset := 2, 1
	page := b.ApplyPagination(records, &limit, &offset)
	assert.Len(t, page, 2)
	assert.Equal(t, "b", page[0]["name"])

	bigOffset := 10
	assert.Empty(t, b.ApplyPagination(records, &limit, &bigOffset))

	assert.Len(t, b.ApplyPagination(records, nil, nil), 4)
}

func TestValidateData(t *testing.T) {
	b := NewBuilder(testSchema)

	assert.NoError(t, b.ValidateData(map[string]interface{}{
		"id":     "t1",
		"name":   "alpha",
		"labels": []string{"x"},
	}))

	// Required field missing.
	err := b.ValidateData(map[string]interface{}{"id": "t1"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidQuery)

	// Wrong type.
	err = b.ValidateData(map[string]interface{}{"id": "t1", "name": 42})
	assert.ErrorIs(t, err, interfaces.ErrInvalidQuery)

	// Unknown field.
	err = b.ValidateData(map[string]interface{}{"id": "t1", "name": "alpha", "bogus": true})
	assert.ErrorIs(t, err, interfaces.ErrInvalidQuery)

	// Nullable and defaulted fields may be absent; timestamps are set by the
	// repository.
	assert.NoError(t, b.ValidateData(map[string]interface{}{"id": "t1", "name": "alpha"}))
}
