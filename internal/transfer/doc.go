// Package transfer downloads single remote files into the local library with
// bounded retries and resumable partial files.
//
// Data is streamed into "<dest>.partial" and renamed into place only after
// the byte count matches the remote size, so a destination path either holds
// a complete file or nothing written by this package.
package transfer
