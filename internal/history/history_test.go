package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/storage"
)

const retention = 30 * 24 * time.Hour

func order(id, cartName string, date time.Time) domain.Order {
	return domain.Order{
		ID:       id,
		Date:     date.UnixMilli(),
		CartName: cartName,
		Items:    []domain.CartLine{},
	}
}

func TestRecordKeepsInsertionOrder(t *testing.T) {
	h := New(retention, nil, nil, zap.NewNop())
	now := time.Now()

	h.Record(order("1", "Table 1", now.Add(-2*time.Hour)))
	h.Record(order("2", "Table 2", now.Add(-time.Hour)))
	h.Record(order("3", "Bar", now))

	got := h.List()
	require.Len(t, got, 3)
	require.Equal(t, "1", got[0].ID)
	require.Equal(t, "3", got[2].ID)
}

func TestRecordPrunesBeyondRetention(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h := New(retention, func() time.Time { return now }, nil, zap.NewNop())

	h.Record(order("old", "Table 1", now.Add(-31*24*time.Hour)))
	h.Record(order("edge", "Table 2", now.Add(-29*24*time.Hour)))
	h.Record(order("fresh", "Bar", now))

	// Pruning happens at write time: nothing older than 30 days relative to
	// the most recent Record call survives.
	got := h.List()
	require.Len(t, got, 2)
	require.Equal(t, "edge", got[0].ID)
	require.Equal(t, "fresh", got[1].ID)
}

func TestPruneIsRelativeToLatestRecord(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h := New(retention, func() time.Time { return now }, nil, zap.NewNop())

	h.Record(order("a", "Table 1", now))
	require.Equal(t, 1, h.Len())

	// 31 days later a single new record evicts the old one.
	now = now.Add(31 * 24 * time.Hour)
	h.Record(order("b", "Table 2", now))

	got := h.List()
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].ID)
}

func TestSearch(t *testing.T) {
	h := New(retention, nil, nil, zap.NewNop())
	now := time.Now()
	h.Record(order("1", "Table 1", now))
	h.Record(order("2", "Table 12", now))
	h.Record(order("3", "Bar", now))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "empty query returns all", query: "", want: []string{"1", "2", "3"}},
		{name: "substring", query: "table 1", want: []string{"1", "2"}},
		{name: "case insensitive", query: "BAR", want: []string{"3"}},
		{name: "no match", query: "terrace", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Search(tt.query)
			ids := make([]string, 0, len(got))
			for _, o := range got {
				ids = append(ids, o.ID)
			}
			require.Equal(t, tt.want, ids)
		})
	}
}

func TestGet(t *testing.T) {
	h := New(retention, nil, nil, zap.NewNop())
	h.Record(order("1", "Table 1", time.Now()))

	o, ok := h.Get("1")
	require.True(t, ok)
	require.Equal(t, "Table 1", o.CartName)

	_, ok = h.Get("nope")
	require.False(t, ok)
}

func TestPersistRoundTrip(t *testing.T) {
	writes := map[string]string{}
	h := New(retention, nil, func(key, value string) { writes[key] = value }, zap.NewNop())
	h.Record(order("1", "Table 1", time.Now()))

	require.Contains(t, writes, storage.KeyOrders)

	restored := New(retention, nil, nil, zap.NewNop())
	require.NoError(t, restored.Restore(writes[storage.KeyOrders]))
	require.Equal(t, h.List(), restored.List())
}

func TestRestoreTolerance(t *testing.T) {
	h := New(retention, nil, nil, zap.NewNop())
	require.NoError(t, h.Restore("null"))
	require.NotNil(t, h.List())
	require.Error(t, h.Restore("not json"))
}
