// Package remote defines the transport contract used to reach the remote file
// store and ships the SFTP and S3 implementations.
//
// Every engine talks to the remote through Client, so a single connection is
// opened per invocation and reused for listing, downloading, and deleting.
// Paths are always slash-separated and absolute ("/downloads/a.mkv"); the S3
// client maps them onto object keys below the bucket root. Missing files are
// reported as ErrNotExist regardless of the transport.
package remote
