// Package syncer runs one incremental sync pass: list the remote roots, skip
// paths already in the ledger, short-circuit files that already exist in the
// local library, and transfer the rest into their categorized folders.
//
// Every completed item is written to the ledger before the next one starts,
// so an interrupted run never loses finished work and never repeats it.
package syncer
