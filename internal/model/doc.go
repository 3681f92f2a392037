// Package model defines the core data structures used throughout safemac.
//
// This package contains the following main types:
//   - Site: A directory classified as a MacCMS installation root
//   - ProtectionRule: Which paths are locked and which must stay writable
//   - ExactFileSignature, ContentHijackSignature, PatternSignature: Detection rules
//   - CheckReport: The result of running all detectors against one site
//   - SiteResult: The result of a lock or unlock run against one site
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The classifier, the protection engine, the detectors, the
// history store and the report writers all share these types.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
