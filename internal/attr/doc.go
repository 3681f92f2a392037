// Package attr toggles the filesystem immutable attribute.
//
// An immutable entry cannot be modified, renamed or deleted by any user,
// root included, until the attribute is cleared. safemac uses it to freeze
// the core files of a MacCMS installation.
//
// Three Operator implementations are provided:
//   - IoctlOperator: FS_IOC_GETFLAGS/FS_IOC_SETFLAGS on Linux, no external process
//   - ChattrOperator: the chattr(1) binary, invoked with an argument vector
//   - MemoryOperator: an in-memory table used by tests and dry runs
//
// Design decision: No implementation ever builds a shell command line. Paths
// come from the scanned tree, which an attacker may control, so they are only
// ever passed as discrete arguments or opened directly.
package attr
