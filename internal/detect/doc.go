// Package detect finds known MacCMS compromise signatures in a site tree.
//
// Three detectors share the package:
//
//   - exact-file: fixed relative paths of planted entry points
//   - content hijack: a configuration file that lost its known-good marker
//   - pattern frequency: regex hit counts in script and template files,
//     optionally with a check for externally loaded scripts in templates
//
// Detection never modifies the tree. Remediation is separate and limited to
// Quarantine (rename to an inert extension), Restore, and ReplaceWithClean
// (backup then overwrite with known-good content). Callers decide whether a
// remediation runs, usually by asking a Confirmer.
package detect
