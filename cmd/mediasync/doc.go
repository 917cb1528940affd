// Package main hosts the mediasync CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into runner
// calls (sync, prune, bootstrap), read-only views over the tracking ledger and
// run history, readiness checks, and configuration scaffolding. It centralizes
// configuration resolution and logging setup so subcommands can focus on
// rendering results.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
