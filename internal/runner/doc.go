// Package runner wires configuration, the tracking ledger, the remote
// transport and the sync, prune and bootstrap engines into single
// invocations.
//
// Each invocation checks transport prerequisites, locks the ledger, dials the
// remote once and reuses that session for every listing, transfer and
// deletion. When the engine returns, the runner records a history row,
// refreshes the metrics textfile and publishes a notification. Reporting
// failures are logged as warnings and never change the run's result.
package runner
