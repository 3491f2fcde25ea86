// Package ws streams pipeline snapshots to WebSocket clients.
//
// New(source, interval) creates a Hub. Hub.Run(ctx) broadcasts on every
// tick until ctx is cancelled, then closes all connections. Hub.ServeHTTP
// upgrades the request, sends the current snapshot immediately and then
// streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// A client that cannot keep up with its buffer is dropped. The upgrader
// accepts all origins. The endpoint is mounted at /ws/stream.
package ws
