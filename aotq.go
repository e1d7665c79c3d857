// Package aotq compiles repository query methods ahead of time. Schema
// files declare entities as structs and repositories as interfaces; the
// generator derives, selects, and preprocesses every query at build time
// and records the result in a manifest, so applications never parse a
// method name or a query string at startup.
//
// The packages break down as follows: generator loads schema declarations
// and orchestrates runs, query holds the derivation and parsing pipeline,
// metamodel the managed-type registry, aot the compiled query value
// objects and the selection factory, runtime the request-time parameter
// binding and execution layer, and cli the cobra frontend.
package aotq

// Version is the aotq release version, overridden at build time.
var Version = "0.1.0-dev"
