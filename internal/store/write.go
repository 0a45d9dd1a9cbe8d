package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/lastclick/internal/model"
)

// maxLookupBatch bounds the number of bound parameters in one IN (...) lookup.
const maxLookupBatch = 500

// Port is the set of operations an ingestion run performs against storage.
// Inserts are append-only with no upsert semantics: callers guarantee that
// keys do not collide, and a collision surfaces as ErrConstraint.
type Port interface {
	// FindOrderFingerprints returns the subset of candidates already stored.
	FindOrderFingerprints(ctx context.Context, candidates []string) (map[string]struct{}, error)

	// FindProductsByKey maps each stored business key among keys to its
	// product ID.
	FindProductsByKey(ctx context.Context, keys []string) (map[string]string, error)

	InsertProducts(ctx context.Context, products []model.Product) error
	InsertOrders(ctx context.Context, orders []model.Order) error
	InsertOrderProducts(ctx context.Context, orderProducts []model.OrderProduct) error
}

// Writer runs fn with exclusive write access to storage. If fn returns an
// error nothing fn wrote is kept.
type Writer interface {
	WithWriter(ctx context.Context, fn func(Port) error) error
}

// Tx is a Port bound to one write transaction.
type Tx struct {
	tx *sql.Tx
}

var _ Port = (*Tx)(nil)

// WithWriter begins an immediate transaction, hands it to fn, and commits
// when fn succeeds. fn must not call other Store methods: the pool holds a
// single connection and the transaction owns it.
func (s *Store) WithWriter(ctx context.Context, fn func(Port) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("writer: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("writer: commit", err)
	}
	return nil
}

// FindOrderFingerprints returns the stored fingerprints among candidates.
func (t *Tx) FindOrderFingerprints(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	for _, chunk := range chunks(dedupeStrings(candidates), maxLookupBatch) {
		rows, err := t.tx.QueryContext(ctx,
			"SELECT fingerprint FROM orders WHERE fingerprint IN ("+placeholders(len(chunk))+")",
			toArgs(chunk)...,
		)
		if err != nil {
			return nil, fmt.Errorf("find order fingerprints: %w", err)
		}
		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				rows.Close()
				return nil, fmt.Errorf("find order fingerprints: scan: %w", err)
			}
			found[fp] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("find order fingerprints: iterate: %w", err)
		}
	}
	return found, nil
}

// FindProductsByKey returns business key -> product ID for stored products.
func (t *Tx) FindProductsByKey(ctx context.Context, keys []string) (map[string]string, error) {
	found := make(map[string]string)
	for _, chunk := range chunks(dedupeStrings(keys), maxLookupBatch) {
		rows, err := t.tx.QueryContext(ctx,
			"SELECT business_key, id FROM products WHERE business_key IN ("+placeholders(len(chunk))+")",
			toArgs(chunk)...,
		)
		if err != nil {
			return nil, fmt.Errorf("find products by key: %w", err)
		}
		for rows.Next() {
			var key, id string
			if err := rows.Scan(&key, &id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("find products by key: scan: %w", err)
			}
			found[key] = id
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("find products by key: iterate: %w", err)
		}
	}
	return found, nil
}

// InsertProducts appends products.
func (t *Tx) InsertProducts(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO products (id, feed_id, name, business_key)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert products: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.ExecContext(ctx, p.ID, nullable(p.FeedID), nullable(p.Name), p.Key); err != nil {
			return classify(fmt.Sprintf("insert product %s", p.ID), err)
		}
	}
	return nil
}

// InsertOrders appends orders. Timestamps are stored as unix microseconds.
func (t *Tx) InsertOrders(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO orders
		(id, event_timestamp, hostname, user_pseudo_id, currency, value, source, medium, campaign, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert orders: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		_, err := stmt.ExecContext(ctx,
			o.ID,
			o.EventTimestamp.UnixMicro(),
			o.Hostname,
			o.UserPseudoID,
			nullable(o.Currency),
			nullable(o.Value),
			nullable(o.Source),
			nullable(o.Medium),
			nullable(o.Campaign),
			o.Fingerprint,
		)
		if err != nil {
			return classify(fmt.Sprintf("insert order %s", o.ID), err)
		}
	}
	return nil
}

// InsertOrderProducts appends junction rows. Referenced orders and products
// must already be written (foreign key constraint).
func (t *Tx) InsertOrderProducts(ctx context.Context, orderProducts []model.OrderProduct) error {
	if len(orderProducts) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO order_products (order_id, product_id, price, quantity)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert order products: prepare: %w", err)
	}
	defer stmt.Close()

	for _, op := range orderProducts {
		if _, err := stmt.ExecContext(ctx, op.OrderID, op.ProductID, nullable(op.Price), nullable(op.Quantity)); err != nil {
			return classify(fmt.Sprintf("insert order product (%s, %s)", op.OrderID, op.ProductID), err)
		}
	}
	return nil
}

// nullable turns a nil pointer into SQL NULL.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func chunks(values []string, size int) [][]string {
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
