// Package internal contains helpers that are intentionally private to
// authcore: record ID generation and the opaque refresh-token wire format.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
