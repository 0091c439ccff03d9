// Package uid generates identifiers: UUIDv7 strings for jobs and correlation
// IDs, snowflake numbers for delivery log rows.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}

// NumberID generates time-ordered numeric identifiers.
type NumberID interface {
	Generate() int64
}
