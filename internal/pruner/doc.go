// Package pruner deletes remote copies of files whose ledger entries have aged
// past the retention window, and drops ledger entries for remote files that
// no longer exist.
package pruner
