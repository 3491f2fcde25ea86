// Package auth provides the API key middleware guarding the HTTP API's
// mutating routes. Read-only requests always pass.
package auth
