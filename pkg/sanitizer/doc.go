// Package sanitizer normalizes user input before validation and storage.
//
// All functions are idempotent and never fail: bad input comes back in a form
// the validators will reject.
//
// Normalization includes:
//   - Names: collapse whitespace, trim
//   - Emails and user ids: trim, lowercase
//   - Vehicle plates: uppercase, collapse separators to a single dash
//   - Vehicle types: trim, lowercase
//   - Slices: remove duplicates and empty values after normalization
package sanitizer
