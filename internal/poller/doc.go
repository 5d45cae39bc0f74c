// Package poller implements the market status poller.
//
// The poller:
//   - Re-reads watched markets through a gateway.MarketDirectory on an interval
//   - Reports each market's close and resolution exactly once
//   - Bounds concurrent REST requests with a semaphore
//
// The streamer uses it to drop market subscriptions once trading stops.
package poller
