// Package pipeline runs the malware check of a site as a sequence of steps.
//
// Each detector (exact-file, content hijack, pattern scan) is wrapped in a
// Step that receives the site's CheckReport and adds findings to it. Steps
// own remediation: they ask the injected Confirmer before quarantining or
// overwriting anything, and record the outcome on the finding.
//
// Design decision: sites are checked one at a time in the caller goroutine.
// Remediation prompts the operator, and interleaved prompts from concurrent
// checks would be unreadable. Parallelism is reserved for the protection
// engine, where no operator interaction happens.
package pipeline
