// Package listing enumerates remote roots into a flat list of files.
//
// Directories are walked with an explicit stack so arbitrarily deep trees do
// not grow the goroutine stack. A directory that cannot be read is logged and
// skipped; its siblings and the remaining roots are still listed.
package listing
