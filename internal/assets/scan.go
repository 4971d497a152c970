// SPDX-License-Identifier: MIT

package assets

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// Scan walks root and returns all files the matcher covers, as
// root-relative slash paths in stable order. root is the project root
// the config globs are anchored to.
func Scan(root string, m *Matcher) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m.Match(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
