// Package classify decides whether a directory is the root of a MacCMS
// installation and finds such roots below a set of base paths.
//
// A directory is scored by counting marker directories (application,
// runtime, thinkphp, template) and marker files (api.php, install.php) that
// exist as immediate children. A score of two or more classifies the
// directory as a site.
//
// Design decision: The score is recomputed from the filesystem on every call.
// Sites are rarely scanned and stale results would hide a freshly deployed
// or removed installation.
package classify
