// Package server runs the shared variable store and its network listener.
//
// Start binds a TCP listener and spawns a single accept goroutine. Each
// accepted connection is read until the peer closes it, decoded as one
// command, and applied before the next connection is accepted. Concurrent
// clients are therefore serviced strictly one after another.
//
// The host reads and writes the same store directly through Add, Remove and
// Get. A value pushed over the wire becomes visible to Get only once the
// accept goroutine has read, decoded and applied it.
//
// The accept goroutine exits when it receives the quit command. Wait blocks
// until that happens and will block forever if no quit ever arrives.
// Shutdown bounds the wait and force-closes the listener when its context
// expires; Close force-closes immediately.
//
// Example usage:
//
//	srv, err := server.Start(server.Config{Addr: "127.0.0.1:8720"},
//	    server.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//
//	srv.Add("Health", variant.Int(1))
//	...
//	if err := srv.Quit(ctx); err != nil {
//	    return err
//	}
package server
