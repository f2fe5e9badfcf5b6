// Package servhub lets independent processes discover, request, and connect
// to *named services* without hard-wiring how the other side is reached.
//
// A service is identified by a `Moniker` (a name plus an optional numeric
// version). Providers announce themselves to a `Broker`:
//
//   - `Register` declares a service name and which audiences (same-process,
//     same-machine, cross-host, guests) may see it;
//   - `ProfferFactory` binds an in-process factory to a moniker;
//   - `ProfferChannel` binds an out-of-process channel name to a moniker.
//
// Consumers call `Broker.RequestProxy` with a moniker. The broker resolves
// the request against its registry (exact version first, then a
// version-agnostic catch-all), enforces the audience gate, and either:
//
//   - invokes the in-process factory, handing it the broker itself so the
//     provided service can recursively request further services; or
//   - drives the `RetryingConnector` to bind the named local channel (a Unix
//     domain socket), retrying transient failures with a short fixed
//     interval, then lets the resolved `Descriptor` frame the raw channel.
//
// A `Descriptor` is an immutable recipe: which formatter (JSON or compact
// binary CBOR) and which framing (4-byte big-endian length prefix, or
// HTTP-like header-delimited) a connection uses. `WithFormatter` and
// `WithFraming` derive new descriptors, supporting capability negotiation
// between client and server preferences without mutation.
//
// The caller owns the returned `Proxy` exclusively and must `Close` it on
// every exit path; Close is idempotent and releases the underlying channel.
//
// The package carries the ambient stack of a production system: structured
// logs via `log/slog`, counters via `hashicorp/go-metrics`, and explicit
// sentinel errors so callers can tell a cancellation from a fault and an
// access denial from a missing provider.
package servhub
