// Package model defines the normalized events delivered to subscribers.
//
// Conventions:
//   - Prices and sizes: decimal.Decimal, exactly as quoted by the exchange (0.00-1.00 for prices)
//   - Timestamps: time.Time in UTC, parsed from the exchange's unix seconds or milliseconds
//   - IDs: strings (order ids are 0x-prefixed hashes, token ids are decimal strings)
//
// Events are values. Nothing in this module mutates an event after it is constructed.
package model
