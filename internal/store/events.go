package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/roach88/lastclick/internal/model"
)

//go:embed fetch_orders.sql
var fetchOrdersSQL string

// InsertEvents appends raw events in one transaction and returns how many
// were stored. Events without a visitor id cannot be attributed and are
// skipped.
func (s *Store) InsertEvents(ctx context.Context, events []model.Event) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert events: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(event_name, event_timestamp, user_pseudo_id, hostname, event_params, items)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("insert events: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i, ev := range events {
		if ev.UserPseudoID == "" {
			continue
		}
		params, items, err := marshalEventPayload(ev)
		if err != nil {
			return 0, fmt.Errorf("insert events: event %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			ev.Name, ev.EventTimestamp, ev.UserPseudoID, ev.Hostname, params, items,
		); err != nil {
			return 0, classify(fmt.Sprintf("insert events: event %d", i), err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert events: commit: %w", err)
	}
	return inserted, nil
}

func marshalEventPayload(ev model.Event) (string, string, error) {
	params := ev.Params
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", "", fmt.Errorf("marshal params: %w", err)
	}

	items := ev.Items
	if items == nil {
		items = []model.FetchedProduct{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("marshal items: %w", err)
	}
	return string(paramsJSON), string(itemsJSON), nil
}

// FetchOrders returns every purchase event joined with its last-click
// attribution, ordered by (event_timestamp, id). Purchases with no prior
// touch carry nil source, medium and campaign.
//
// A purchase whose currency, value or items cannot be decoded is still
// returned, with Invalid set, so that one bad event never blocks the others.
func (s *Store) FetchOrders(ctx context.Context) ([]model.FetchedOrder, error) {
	rows, err := s.db.QueryContext(ctx, fetchOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	defer rows.Close()

	orders := []model.FetchedOrder{}
	for rows.Next() {
		var o model.FetchedOrder
		var source, medium, campaign sql.NullString
		var currency, value any
		var items string
		if err := rows.Scan(
			&o.EventTimestamp, &o.Hostname, &o.UserPseudoID,
			&currency, &value, &source, &medium, &campaign, &items,
		); err != nil {
			return nil, fmt.Errorf("fetch orders: scan: %w", err)
		}
		o.Source = stringPtr(source)
		o.Medium = stringPtr(medium)
		o.Campaign = stringPtr(campaign)

		var ok bool
		if o.Currency, ok = textParam(currency); !ok {
			o.Invalid = fmt.Sprintf("currency is not a string: %v", currency)
		}
		if o.Value, ok = numericParam(value); !ok {
			o.Invalid = fmt.Sprintf("value is not numeric: %v", value)
		}
		if err := json.Unmarshal([]byte(items), &o.Products); err != nil {
			o.Products = nil
			o.Invalid = fmt.Sprintf("items cannot be decoded: %v", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch orders: iterate: %w", err)
	}
	return orders, nil
}

// numericParam accepts a JSON number or null extracted from event_params.
func numericParam(v any) (*float64, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case int64:
		f := float64(x)
		return &f, true
	case float64:
		return &x, true
	}
	return nil, false
}

// textParam accepts a JSON string or null extracted from event_params.
func textParam(v any) (*string, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case string:
		return &x, true
	case []byte:
		s := string(x)
		return &s, true
	}
	return nil, false
}
