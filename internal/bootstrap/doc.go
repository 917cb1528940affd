// Package bootstrap seeds the ledger with every file currently on the remote
// without transferring anything. Seeded entries carry the remote modification
// time so the retention pruner ages them by their real remote age.
package bootstrap
