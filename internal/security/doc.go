// Package security inspects the TLS certificate presented by the pull
// source's database endpoint so that an expiring or broken certificate shows
// up in the health diagnostics before fetches start failing.
package security
