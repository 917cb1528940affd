// Package categorize decides where in the local library a remote file lands.
//
// Categorize is a pure function of the file, the configured roots, and the
// Rules, plus one piece of run-scoped state: the FolderCache. The cache
// remembers which base folder the first primary file of each remote parent
// folder resolved to so subtitles, artwork, and metadata from that folder
// follow their media file. A FolderCache must be created fresh for every run.
package categorize
