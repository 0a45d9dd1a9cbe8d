package ingest

import "github.com/roach88/lastclick/internal/model"

// ProductIndex maps a product business key to the surface id of its
// canonical product. Reconcile adds every newly introduced key to it.
type ProductIndex map[string]string

type pairKey struct {
	orderID   string
	productID string
}

// Reconcile resolves the speculative products of batch against index, in
// batch order.
//
// A product whose key is already indexed (stored, or introduced earlier in
// this pass) is dropped and its junction rows are redirected to the indexed
// id. Otherwise the product is kept and its key indexed. Junction rows of one
// triple that end up sharing (order, product) are merged: quantities add,
// nil only when both sides are nil, and the first price wins.
//
// The returned triples carry only new products. index is updated in place.
func Reconcile(index ProductIndex, batch []model.Triple) ([]model.Triple, error) {
	out := make([]model.Triple, 0, len(batch))
	for _, t := range batch {
		redirect := make(map[string]string)
		fresh := make([]model.Product, 0, len(t.Products))
		for _, p := range t.Products {
			if canonical, ok := index[p.Key]; ok {
				redirect[p.ID] = canonical
				continue
			}
			index[p.Key] = p.ID
			fresh = append(fresh, p)
		}

		merged := mergeOrderProducts(t.OrderProducts, redirect)
		reconciled := model.Triple{Order: t.Order, Products: fresh, OrderProducts: merged}
		if err := verifyTriple(reconciled, redirect); err != nil {
			return nil, err
		}
		out = append(out, reconciled)
	}
	return out, nil
}

// mergeOrderProducts applies redirect and collapses rows sharing
// (order, product), keeping first-occurrence order. Input rows are not
// modified.
func mergeOrderProducts(rows []model.OrderProduct, redirect map[string]string) []model.OrderProduct {
	pos := make(map[pairKey]int, len(rows))
	merged := make([]model.OrderProduct, 0, len(rows))
	for _, op := range rows {
		if canonical, ok := redirect[op.ProductID]; ok {
			op.ProductID = canonical
		}
		k := pairKey{orderID: op.OrderID, productID: op.ProductID}
		if i, ok := pos[k]; ok {
			merged[i].Quantity = addQuantity(merged[i].Quantity, op.Quantity)
			continue
		}
		pos[k] = len(merged)
		merged = append(merged, op)
	}
	return merged
}

// addQuantity sums two nullable quantities. nil is absorbing only when both
// are nil.
func addQuantity(a, b *int64) *int64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	sum := *a + *b
	return &sum
}

// verifyTriple checks that every junction row belongs to the triple's order,
// references a product that exists after reconciliation, and is unique per
// (order, product).
func verifyTriple(t model.Triple, redirect map[string]string) error {
	known := make(map[string]struct{}, len(t.Products)+len(redirect))
	for _, p := range t.Products {
		known[p.ID] = struct{}{}
	}
	for _, canonical := range redirect {
		known[canonical] = struct{}{}
	}

	seen := make(map[pairKey]struct{}, len(t.OrderProducts))
	for _, op := range t.OrderProducts {
		if op.OrderID != t.Order.ID {
			return newIntegrityViolation(StageReconciled,
				"order product references order %s inside order %s", op.OrderID, t.Order.ID)
		}
		if _, ok := known[op.ProductID]; !ok {
			return newIntegrityViolation(StageReconciled,
				"order %s references unknown product %s", op.OrderID, op.ProductID)
		}
		k := pairKey{orderID: op.OrderID, productID: op.ProductID}
		if _, dup := seen[k]; dup {
			return newIntegrityViolation(StageReconciled,
				"duplicate order product (%s, %s) after merge", op.OrderID, op.ProductID)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// productKeys lists the distinct business keys of batch.
func productKeys(batch []model.Triple) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, t := range batch {
		for _, p := range t.Products {
			if _, ok := seen[p.Key]; ok {
				continue
			}
			seen[p.Key] = struct{}{}
			keys = append(keys, p.Key)
		}
	}
	return keys
}
