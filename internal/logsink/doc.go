// Package logsink writes the per-pattern hit logs of a malware check run.
//
// Layout: <run-root>/<timestamp>/<site-basename>/<pattern-name>.txt
//
// Every pattern gets an empty file when a site is opened. Hits are appended
// as "<count> <filename>: <fullpath>" lines while the site is scanned. When
// the site is finalized each file is sorted by count, highest first, keeping
// the original order between equal counts, and files with no hits are removed.
package logsink
