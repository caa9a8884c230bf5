// Package ws streams snapshot updates to browser clients over WebSocket.
//
// New(source, store) creates a Hub subscribed to the store. Hub.Run(ctx)
// broadcasts after every publish; it blocks until ctx is cancelled, then
// closes all connections. Hub.ServeHTTP upgrades the request and sends the
// current state immediately.
//
// Messages:
//
//	{"event": "snapshot", "data": { /* same schema as GET /api/v1/goons */ }}
//	{"event": "pending",  "data": null}   // nothing fetched yet
//
// The upgrader accepts all origins. The hub is mounted at /ws/stream.
package ws
