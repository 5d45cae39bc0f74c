// Package subscription implements the Subscription Registry.
//
// The Registry:
//   - Allocates a uuid handle per subscription
//   - Indexes market subscriptions once per token id and user subscriptions under "user"
//   - Supports several subscriptions on the same channel key
//   - Zeroes credentials when a subscription is removed or purged
//   - Produces the subscribe frames replayed after every reconnect
package subscription
