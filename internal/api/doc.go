// Package api provides a read-only client for the Polymarket CLOB REST API.
//
// REST endpoints:
//   - CLOB: https://clob.polymarket.com
//   - Gamma (market catalog by slug): https://gamma-api.polymarket.com
//
// Public endpoints (GET /markets/{condition_id}) need no credentials.
// User endpoints (GET /data/orders, GET /data/trades) are signed with L2
// headers derived from the caller's API credential triple.
package api
