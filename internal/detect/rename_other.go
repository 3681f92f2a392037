//go:build !linux

package detect

func renameNoReplace(from, to string) error {
	return renameChecked(from, to)
}
