// Package middleware exposes net/http adapters over authcore.Engine
// validation.
//
// # Guards
//
//   - [Guard]: reads the Authorization bearer token, validates it, and
//     injects the [authcore.AuthResult] into the request context.
//   - [RequireRole]: gates a route on a minimum role tier. Role decisions
//     live here at the gateway edge, never inside the engine.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
package middleware
