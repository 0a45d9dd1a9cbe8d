package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/roach88/lastclick/internal/model"
)

// Length is the number of hex characters kept from the SHA-256 digest
// (64 bits).
const Length = 16

const separator = ":"

// Field is one normalized input to Fingerprint.
type Field struct {
	token   string
	present bool
}

// Time returns a timestamp field.
func Time(t time.Time) Field {
	return Field{token: NormalizeTime(t), present: true}
}

// String returns a present string field.
func String(s string) Field {
	return Field{token: NormalizeString(s), present: true}
}

// OptString returns a string field that is absent when s is nil.
func OptString(s *string) Field {
	if s == nil {
		return Field{}
	}
	return String(*s)
}

// Float returns a present numeric field.
func Float(v float64) Field {
	return Field{token: NormalizeFloat(v), present: true}
}

// OptFloat returns a numeric field that is absent when v is nil.
func OptFloat(v *float64) Field {
	if v == nil {
		return Field{}
	}
	return Float(*v)
}

// Token returns the normalized text and whether the field is present.
func (f Field) Token() (string, bool) {
	return f.token, f.present
}

// Fingerprint hashes the present fields in the given order.
func Fingerprint(fields ...Field) string {
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.present {
			tokens = append(tokens, f.token)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(tokens, separator)))
	return hex.EncodeToString(sum[:])[:Length]
}

// Order computes the fingerprint of an order from
// (timestamp, hostname, visitor id, currency, value, source, medium, campaign).
// The surface ID does not participate.
func Order(o model.Order) string {
	return Fingerprint(
		Time(o.EventTimestamp),
		String(o.Hostname),
		String(o.UserPseudoID),
		OptString(o.Currency),
		OptFloat(o.Value),
		OptString(o.Source),
		OptString(o.Medium),
		OptString(o.Campaign),
	)
}

// ProductKey computes the business-key fingerprint of (feed id, name).
func ProductKey(feedID, name *string) string {
	return Fingerprint(OptString(feedID), OptString(name))
}
