// Package tracking persists the sync ledger: a JSON object mapping every
// handled remote path to the local copy it produced.
//
// The ledger is the only durable state. A path present in the ledger is never
// transferred again unless a sync is forced, and entries are only removed by
// the retention pruner. Open takes an advisory lock beside the ledger file so
// two invocations cannot interleave writes; Save replaces the snapshot
// atomically so a crash leaves either the old or the new ledger on disk.
package tracking
