package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/lastclick/internal/model"
)

// ErrInvalidPage is returned for a negative page or a non-positive page size.
var ErrInvalidPage = errors.New("invalid page")

const orderColumns = `id, event_timestamp, hostname, user_pseudo_id, currency, value, source, medium, campaign, fingerprint`

// PageOrders returns one zero-based page of orders ordered by
// (event_timestamp ASC, id ASC). A page past the end is empty, not an error,
// including one whose offset does not fit in an int64.
func (s *Store) PageOrders(ctx context.Context, page, pageSize int) ([]model.Order, error) {
	if page < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: page=%d page_size=%d", ErrInvalidPage, page, pageSize)
	}
	if int64(page) > math.MaxInt64/int64(pageSize) {
		return []model.Order{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY event_timestamp ASC, id COLLATE BINARY ASC
		LIMIT ? OFFSET ?
	`, pageSize, int64(page)*int64(pageSize))
	if err != nil {
		return nil, fmt.Errorf("page orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// CountOrders returns the number of stored orders.
func (s *Store) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// ReadAllOrders returns every order in page order.
func (s *Store) ReadAllOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY event_timestamp ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// ReadAllProducts returns every product ordered by id.
func (s *Store) ReadAllProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feed_id, name, business_key
		FROM products
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		var feedID, name sql.NullString
		if err := rows.Scan(&p.ID, &feedID, &name, &p.Key); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.FeedID = stringPtr(feedID)
		p.Name = stringPtr(name)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ReadAllOrderProducts returns every junction row ordered by
// (order_id, product_id).
func (s *Store) ReadAllOrderProducts(ctx context.Context) ([]model.OrderProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, product_id, price, quantity
		FROM order_products
		ORDER BY order_id COLLATE BINARY ASC, product_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all order products: %w", err)
	}
	defer rows.Close()

	return scanOrderProducts(rows)
}

// ReadOrderProducts returns the junction rows of one order.
func (s *Store) ReadOrderProducts(ctx context.Context, orderID string) ([]model.OrderProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, product_id, price, quantity
		FROM order_products
		WHERE order_id = ?
		ORDER BY product_id COLLATE BINARY ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order products: %w", err)
	}
	defer rows.Close()

	return scanOrderProducts(rows)
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		var ts int64
		var currency, source, medium, campaign sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(
			&o.ID, &ts, &o.Hostname, &o.UserPseudoID,
			&currency, &value, &source, &medium, &campaign, &o.Fingerprint,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.EventTimestamp = time.UnixMicro(ts).UTC()
		o.Currency = stringPtr(currency)
		o.Value = floatPtr(value)
		o.Source = stringPtr(source)
		o.Medium = stringPtr(medium)
		o.Campaign = stringPtr(campaign)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrderProducts(rows *sql.Rows) ([]model.OrderProduct, error) {
	orderProducts := []model.OrderProduct{}
	for rows.Next() {
		var op model.OrderProduct
		var price sql.NullFloat64
		var quantity sql.NullInt64
		if err := rows.Scan(&op.OrderID, &op.ProductID, &price, &quantity); err != nil {
			return nil, fmt.Errorf("scan order product: %w", err)
		}
		op.Price = floatPtr(price)
		op.Quantity = int64Ptr(quantity)
		orderProducts = append(orderProducts, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order products: %w", err)
	}
	return orderProducts, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
