package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lastclick/internal/model"
	"github.com/roach88/lastclick/internal/store"
)

// purchaseMicros is 2023-11-14T22:13:20Z in microseconds.
const purchaseMicros = int64(1_700_000_000_000_000)

func strPtr(s string) *string {
	return &s
}

func f64Ptr(v float64) *float64 {
	return &v
}

func i64Ptr(v int64) *int64 {
	return &v
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func item(feedID, name string, price float64, qty int64) model.FetchedProduct {
	return model.FetchedProduct{
		FeedID:   strPtr(feedID),
		Name:     strPtr(name),
		Price:    f64Ptr(price),
		Quantity: i64Ptr(qty),
	}
}

// examplePurchase is the purchase used throughout: visitor abc on
// shop.example.com, attributed to google/cpc/sale.
func examplePurchase(items ...model.FetchedProduct) model.FetchedOrder {
	return model.FetchedOrder{
		EventTimestamp: purchaseMicros,
		Hostname:       "shop.example.com",
		UserPseudoID:   "abc",
		Currency:       strPtr("USD"),
		Value:          f64Ptr(42.5),
		Source:         strPtr("google"),
		Medium:         strPtr("cpc"),
		Campaign:       strPtr("sale"),
		Products:       items,
	}
}

func purchaseAt(micros int64, visitor string, items ...model.FetchedProduct) model.FetchedOrder {
	rec := examplePurchase(items...)
	rec.EventTimestamp = micros
	rec.UserPseudoID = visitor
	return rec
}

// triple builds a mapped triple with explicit ids for reconciler tests.
func triple(orderID, fp string, products ...model.Product) model.Triple {
	t := model.Triple{Order: model.Order{ID: orderID, Fingerprint: fp}}
	for _, p := range products {
		t.Products = append(t.Products, p)
		t.OrderProducts = append(t.OrderProducts, model.OrderProduct{
			OrderID:   orderID,
			ProductID: p.ID,
			Quantity:  i64Ptr(1),
		})
	}
	return t
}

func product(id, key string) model.Product {
	return model.Product{ID: id, Key: key}
}
