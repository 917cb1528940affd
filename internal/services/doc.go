// Package services defines shared utilities consumed by the sync, prune, and
// bootstrap engines and the command layer.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, run modes, and the remote path in
//     flight for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (connection, dependency, ledger, transfer) without string
//     matching.
//
// Use these helpers when wiring new engine logic so operational behaviour
// (error handling, observability) stays uniform across run modes.
package services
