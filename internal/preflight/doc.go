// Package preflight provides readiness checks for the filesystem paths and
// transport prerequisites that mediasync depends on.
//
// These checks run in two contexts:
//   - The runner calls CheckTransport before opening a remote session. If it
//     fails, the run stops before the ledger is locked or the remote dialed.
//   - The CLI "mediasync status" command uses RunAll to display readiness.
package preflight
