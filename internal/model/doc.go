// Package model provides the record types shared by every lastclick package.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key conventions:
//   - Nullable columns are pointers (nil means absent, never zero)
//   - Timestamps are UTC instants; the store keeps them as unix microseconds
//   - All JSON tags use snake_case
package model
