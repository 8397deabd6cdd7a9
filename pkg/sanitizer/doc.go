// Package sanitizer normalizes user and operator input before validation and
// storage.
//
// All functions are idempotent: applying them twice yields the same result as
// applying them once. Invalid input is never rejected here; it is normalized
// as far as possible and left for the validators to refuse.
//
// Normalization includes:
//   - Emails: trimmed and lower-cased
//   - Station names: whitespace collapsed, case preserved
//   - Station ids: lower-cased, restricted to [a-z0-9_-]
package sanitizer
