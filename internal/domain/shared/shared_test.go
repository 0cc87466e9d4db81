package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError("NOT_FOUND", "Order xyz not found")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), ErrNotFound)
	assert.False(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "Order xyz not found", err.Error())
}

func TestNewBaseEntity(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	e := NewBaseEntity(now)

	assert.NotEqual(t, uuid.Nil, e.GetID())
	assert.Equal(t, now, e.GetCreatedAt())
	assert.Equal(t, now, e.GetUpdatedAt())

	later := now.Add(time.Hour)
	e.Touch(later)
	assert.Equal(t, now, e.GetCreatedAt())
	assert.Equal(t, later, e.GetUpdatedAt())
}

func TestBaseAggregateRoot_Events(t *testing.T) {
	agg := &BaseAggregateRoot{BaseEntity: NewBaseEntity(time.Now()), Version: 1}
	event := NewBaseDomainEvent("Tested", "Thing", agg.ID, time.Now())

	agg.AddDomainEvent(&event)
	agg.IncrementVersion()

	assert.Equal(t, 2, agg.GetVersion())
	require.Len(t, agg.GetDomainEvents(), 1)
	assert.Equal(t, "Tested", agg.GetDomainEvents()[0].EventType())
	assert.Equal(t, agg.ID, agg.GetDomainEvents()[0].AggregateID())

	pulled := agg.PullDomainEvents()
	assert.Len(t, pulled, 1)
	assert.Empty(t, agg.GetDomainEvents())
}

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name   string
		in     Filter
		expect Filter
	}{
		{"zero value", Filter{}, DefaultFilter()},
		{"clamps page size", Filter{Page: 2, PageSize: 500, OrderBy: "status", OrderDir: "asc"},
			Filter{Page: 2, PageSize: MaxPageSize, OrderBy: "status", OrderDir: "asc"}},
		{"bad direction", Filter{Page: 1, PageSize: 10, OrderBy: "id", OrderDir: "sideways"},
			Filter{Page: 1, PageSize: 10, OrderBy: "id", OrderDir: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.in.Normalize())
		})
	}

	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 41, 1, 20)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(41), p.Total)

	empty := NewPaginated[int](nil, 10, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestDefaultIdempotencyConfig(t *testing.T) {
	cfg := DefaultIdempotencyConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
}
