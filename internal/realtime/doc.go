// Package realtime is the public client for the CLOB websocket feed.
//
// A Client composes the Subscription Registry, the Connection Manager and the
// Event Dispatcher behind a small API:
//
//	c, err := realtime.New(realtime.Config{AutoReconnect: realtime.Bool(true)}, logger)
//	c.On(connection.EventConnected, func(ev connection.Event) { ... })
//	err = c.Connect(ctx)
//	sub, err := c.SubscribeUserEvents(creds, subscription.Callbacks{OnOrder: ...})
//	sub.Unsubscribe()
//	c.Disconnect(ctx)
//
// Callbacks for one subscription run sequentially in receipt order on a
// goroutine owned by that subscription. Connection state listeners run on a
// separate goroutine. The client never reads configuration or the environment.
package realtime
