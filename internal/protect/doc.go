// Package protect locks and unlocks MacCMS sites with the immutable attribute.
//
// Locking walks every configured lock directory and sets the attribute on
// each directory and regular file, then sets it on matching files in the site
// root, and finally clears it again below every exclude directory. The final
// pass runs unconditionally so cache and upload paths always end writable,
// whatever the overlap between lock and exclude entries.
//
// Unlocking clears the attribute on every entry below the site root.
//
// Sites are processed concurrently, one goroutine per site, joined before
// ProcessSites returns. Site trees are assumed disjoint and the attribute
// toggle is idempotent per path, so no locking is needed between goroutines.
package protect
