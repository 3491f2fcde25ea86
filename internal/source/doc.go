// Package source adapts the two device feeds into normalized readings.
//
// MQTT subscribes to one topic on a broker and hands each decoded payload to
// a Handler. It connects once and reconnects only when asked: a dropped
// connection leaves it in StateDisconnected until Reconnect is called.
//
// Firebase fetches the most recent documents of a Realtime Database path
// over REST. It keeps no cursor; every Fetch returns the full recent batch
// ordered by push key, which is chronological.
//
// Both adapters normalize records with the reading package, so both feeds
// accept the same field aliases and numeric encodings.
package source
