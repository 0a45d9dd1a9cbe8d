// Package fingerprint derives short content-addressed identities from
// normalized record fields.
//
// A fingerprint is SHA-256 over the normalized field tokens joined with ":",
// truncated to Length hex characters. Each field is normalized by kind:
//   - time: UTC, truncated to whole seconds, rendered 2006-01-02T15:04:05
//   - string: NFC, surrounding whitespace trimmed, lower-cased
//   - float: fixed six-decimal text
//
// Absent (nil) fields are dropped from the token list while an empty string
// is kept as an empty token, so (a, nil, b) and (a, "", b) differ. Existing
// stored fingerprints depend on this, so it must not change.
//
// Field order is part of the contract. Callers use Order and ProductKey
// rather than assembling fields by hand.
package fingerprint
