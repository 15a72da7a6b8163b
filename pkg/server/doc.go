// Package server drives the ELK server over its stdio protocol.
//
// The ELK server reads one JSON graph per line on stdin and answers with one
// JSON layout per line on stdout. Diagnostic output goes to stderr; the
// server prints [graph.BenignServerMessage] after every request, which is
// not an error.
//
// # Client
//
// A [Client] owns at most one server process. The process is started on
// the first request, reused for later ones and restarted transparently if
// it has exited. Requests on one Client are serialized; use a [Pool] for
// concurrent layouts.
//
//	c := server.NewClient(server.Options{Installer: manager})
//	defer c.Close()
//	layout, err := c.Layout(ctx, g)
//
// # Errors
//
// Failures carry pkg/errors codes:
//
//   - SERVER_FAILED: the server produced no response (usually it exited)
//   - SERVER_ERROR: the server reported a problem on stderr or returned a
//     malformed response; a JSON error object is returned as *graph.ServerError
//   - CONNECTION_FAILED: writing to or reading from the pipes failed
//   - SERVER_UNAVAILABLE: the client is closed or the server could not start
//
// # Passthrough
//
// [Run] starts a server in stdio or socket mode and connects it to the
// caller's streams; it backs the "elk server" command.
package server
