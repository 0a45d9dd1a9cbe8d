package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lastclick/internal/fingerprint"
	"github.com/roach88/lastclick/internal/model"
)

func TestMapper_Map(t *testing.T) {
	m := NewMapper(NewFixedGenerator("order-1", "product-1", "product-2"))

	tr, err := m.Map(examplePurchase(
		item("F1", "Widget", 10, 1),
		item("F2", "Gadget", 5, 2),
	))
	require.NoError(t, err)

	assert.Equal(t, "order-1", tr.Order.ID)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), tr.Order.EventTimestamp)
	assert.Equal(t, "73694e14eb5b89d3", tr.Order.Fingerprint)

	require.Len(t, tr.Products, 2)
	assert.Equal(t, "product-1", tr.Products[0].ID)
	assert.Equal(t, "0d9ff9082a13819f", tr.Products[0].Key)
	assert.Equal(t, "product-2", tr.Products[1].ID)

	require.Len(t, tr.OrderProducts, 2)
	for i, op := range tr.OrderProducts {
		assert.Equal(t, "order-1", op.OrderID)
		assert.Equal(t, tr.Products[i].ID, op.ProductID)
	}
	assert.Equal(t, int64(2), *tr.OrderProducts[1].Quantity)
	assert.Equal(t, 5.0, *tr.OrderProducts[1].Price)
}

func TestMapper_NoItems(t *testing.T) {
	m := NewMapper(NewFixedGenerator("order-1"))

	tr, err := m.Map(examplePurchase())
	require.NoError(t, err)
	assert.Empty(t, tr.Products)
	assert.Empty(t, tr.OrderProducts)
}

func TestMapper_FingerprintIgnoresSurfaceID(t *testing.T) {
	a, err := NewMapper(NewFixedGenerator("a")).Map(examplePurchase())
	require.NoError(t, err)
	b, err := NewMapper(NewFixedGenerator("b")).Map(examplePurchase())
	require.NoError(t, err)

	assert.NotEqual(t, a.Order.ID, b.Order.ID)
	assert.Equal(t, a.Order.Fingerprint, b.Order.Fingerprint)
}

func TestMapper_SubSecondTimestampsCollide(t *testing.T) {
	m := NewMapper(UUIDv7Generator{})

	a, err := m.Map(purchaseAt(purchaseMicros, "abc"))
	require.NoError(t, err)
	b, err := m.Map(purchaseAt(purchaseMicros+999_999, "abc"))
	require.NoError(t, err)

	assert.Equal(t, a.Order.Fingerprint, b.Order.Fingerprint)
}

func TestMapper_ProductKeyMatchesFingerprint(t *testing.T) {
	m := NewMapper(NewFixedGenerator("o", "p"))

	tr, err := m.Map(examplePurchase(model.FetchedProduct{FeedID: strPtr("F1")}))
	require.NoError(t, err)
	assert.Equal(t, fingerprint.ProductKey(strPtr("F1"), nil), tr.Products[0].Key)
	assert.Nil(t, tr.OrderProducts[0].Quantity)
	assert.Nil(t, tr.OrderProducts[0].Price)
}

func TestMapper_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.FetchedOrder)
	}{
		{"zero timestamp", func(r *model.FetchedOrder) { r.EventTimestamp = 0 }},
		{"negative timestamp", func(r *model.FetchedOrder) { r.EventTimestamp = -1 }},
		{"blank hostname", func(r *model.FetchedOrder) { r.Hostname = "  " }},
		{"missing visitor", func(r *model.FetchedOrder) { r.UserPseudoID = "" }},
		{"undecodable source record", func(r *model.FetchedOrder) { r.Invalid = "value is not numeric: n/a" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// An empty generator panics if an id is drawn.
			m := NewMapper(NewFixedGenerator())
			rec := examplePurchase(item("F1", "Widget", 10, 1))
			tt.mutate(&rec)

			_, err := m.Map(rec)
			require.Error(t, err)
			assert.True(t, IsMalformedFact(err))

			var pe *PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, StageMapped, pe.Stage)
		})
	}
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.Generate()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
