// Package window holds the bounded, ordered history of readings.
// It is a thread-safe ring buffer with FIFO eviction; readers always receive
// copies, never a view into internal storage.
package window
