// Package ratelimit tracks each shop's Admin API call budget and refuses
// calls while the shop is throttled.
package ratelimit
