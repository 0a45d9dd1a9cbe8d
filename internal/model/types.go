package model

import "time"

// FetchedProduct is one line item of a fetched purchase.
type FetchedProduct struct {
	FeedID   *string  `json:"item_id"`
	Name     *string  `json:"item_name"`
	Price    *float64 `json:"price"`
	Quantity *int64   `json:"quantity"`
}

// FetchedOrder is a purchase already joined with its last-click attribution.
// EventTimestamp is microseconds since the unix epoch. Invalid is set by a
// source that could not decode part of the record; such records are rejected
// at mapping time.
type FetchedOrder struct {
	EventTimestamp int64            `json:"event_timestamp"`
	Hostname       string           `json:"hostname"`
	UserPseudoID   string           `json:"user_pseudo_id"`
	Currency       *string          `json:"currency"`
	Value          *float64         `json:"value"`
	Source         *string          `json:"source"`
	Medium         *string          `json:"medium"`
	Campaign       *string          `json:"campaign"`
	Products       []FetchedProduct `json:"products"`
	Invalid        string           `json:"-"`
}

// Order is one persisted purchase.
type Order struct {
	ID             string    `json:"id"`
	EventTimestamp time.Time `json:"event_timestamp"`
	Hostname       string    `json:"hostname"`
	UserPseudoID   string    `json:"user_pseudo_id"`
	Currency       *string   `json:"currency"`
	Value          *float64  `json:"value"`
	Source         *string   `json:"source"`
	Medium         *string   `json:"medium"`
	Campaign       *string   `json:"campaign"`
	Fingerprint    string    `json:"fingerprint"` // Content-addressed identity
}

// Product is one catalog item. Key is the business-key fingerprint of
// (FeedID, Name); at most one persisted Product exists per Key.
type Product struct {
	ID     string  `json:"id"`
	FeedID *string `json:"feed_id"`
	Name   *string `json:"name"`
	Key    string  `json:"key"`
}

// OrderProduct links an order to a canonical product.
type OrderProduct struct {
	OrderID   string   `json:"order_id"`
	ProductID string   `json:"product_id"`
	Price     *float64 `json:"price"`
	Quantity  *int64   `json:"quantity"`
}

// Triple is the unit of processing: one order with its speculative products
// and junction rows.
type Triple struct {
	Order         Order
	Products      []Product
	OrderProducts []OrderProduct
}

// Event is a raw behavioral event as recorded by the tracking layer.
// Params holds scalar event parameters (source, medium, campaign, currency,
// value, ...); Items holds purchase line items.
type Event struct {
	Name           string           `json:"event_name"`
	EventTimestamp int64            `json:"event_timestamp"`
	UserPseudoID   string           `json:"user_pseudo_id"`
	Hostname       string           `json:"hostname"`
	Params         map[string]any   `json:"event_params,omitempty"`
	Items          []FetchedProduct `json:"items,omitempty"`
}
