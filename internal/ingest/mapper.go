package ingest

import (
	"strings"
	"time"

	"github.com/roach88/lastclick/internal/fingerprint"
	"github.com/roach88/lastclick/internal/model"
)

// Mapper converts fetched records into triples. It assigns fresh surface ids
// and fingerprints but never consults storage.
type Mapper struct {
	ids IDGenerator
}

// NewMapper creates a Mapper drawing ids from ids.
func NewMapper(ids IDGenerator) *Mapper {
	return &Mapper{ids: ids}
}

// Map builds the order, one speculative product per line item, and one
// junction row per line item. Records the source marked Invalid, and records
// without a timestamp, hostname or visitor id, are rejected with a
// MALFORMED_FACT error; no ids are consumed for them.
func (m *Mapper) Map(rec model.FetchedOrder) (model.Triple, error) {
	if err := validateFetched(rec); err != nil {
		return model.Triple{}, err
	}

	order := model.Order{
		ID:             m.ids.Generate(),
		EventTimestamp: EventTime(rec.EventTimestamp),
		Hostname:       rec.Hostname,
		UserPseudoID:   rec.UserPseudoID,
		Currency:       rec.Currency,
		Value:          rec.Value,
		Source:         rec.Source,
		Medium:         rec.Medium,
		Campaign:       rec.Campaign,
	}
	order.Fingerprint = fingerprint.Order(order)

	products := make([]model.Product, 0, len(rec.Products))
	orderProducts := make([]model.OrderProduct, 0, len(rec.Products))
	for _, item := range rec.Products {
		product := model.Product{
			ID:     m.ids.Generate(),
			FeedID: item.FeedID,
			Name:   item.Name,
			Key:    fingerprint.ProductKey(item.FeedID, item.Name),
		}
		products = append(products, product)
		orderProducts = append(orderProducts, model.OrderProduct{
			OrderID:   order.ID,
			ProductID: product.ID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	return model.Triple{Order: order, Products: products, OrderProducts: orderProducts}, nil
}

// EventTime converts microseconds since the unix epoch to a UTC instant.
func EventTime(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}

func validateFetched(rec model.FetchedOrder) error {
	if rec.Invalid != "" {
		return newMalformedFact("%s (event_timestamp=%d)", rec.Invalid, rec.EventTimestamp)
	}
	if rec.EventTimestamp <= 0 {
		return newMalformedFact("missing event_timestamp")
	}
	if strings.TrimSpace(rec.Hostname) == "" {
		return newMalformedFact("missing hostname (event_timestamp=%d)", rec.EventTimestamp)
	}
	if strings.TrimSpace(rec.UserPseudoID) == "" {
		return newMalformedFact("missing user_pseudo_id (event_timestamp=%d)", rec.EventTimestamp)
	}
	return nil
}
