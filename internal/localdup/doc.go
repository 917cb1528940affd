// Package localdup finds files already present in the local library under the
// same name and size as a remote candidate, typically copies a person placed
// there by hand.
package localdup
