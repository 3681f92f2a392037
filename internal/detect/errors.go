package detect

import "errors"

var (
	// ErrTargetExists is returned when a rename or backup would overwrite an existing file.
	ErrTargetExists = errors.New("target already exists")

	// ErrInvalidPattern is returned when a pattern signature cannot be compiled.
	ErrInvalidPattern = errors.New("invalid pattern signature")

	// ErrContentRead is returned when a file selected for inspection cannot be read.
	ErrContentRead = errors.New("failed to read file content")

	// ErrBackupMismatch is returned when a written backup does not match the original bytes.
	ErrBackupMismatch = errors.New("backup content does not match original")

	// ErrNotHijacked is returned by ReplaceWithClean for a nil hit.
	ErrNotHijacked = errors.New("no hijack to remediate")
)
