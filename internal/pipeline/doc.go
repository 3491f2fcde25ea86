// Package pipeline owns the history window and serializes every change to it.
//
// A Controller runs a single writer goroutine (Run). IngestPush, RefreshPull
// and Reset hand an operation to that goroutine and wait until it has been
// applied, so push callbacks and the pull poller never interleave their
// writes. Reads go straight to the window: Snapshot takes one consistent
// copy and derives the trend and alert states from that copy alone.
package pipeline
