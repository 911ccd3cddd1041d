package bundle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LoadDir reads every regular file under dir into a new Set. Names listed in
// entries are flagged as entry points and carry their own name as origin.
func LoadDir(dir string, entries []string) (*Set, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat bundle dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("bundle path %s is not a directory", dir)
	}

	entrySet := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		entrySet[filepath.ToSlash(e)] = struct{}{}
	}

	set := NewSet()
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", p, err)
		}
		// #nosec G304 -- p is produced by WalkDir rooted at the bundle dir.
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", p, err)
		}
		name := filepath.ToSlash(rel)
		_, entry := entrySet[name]
		a := Artifact{
			Name:  name,
			Bytes: data,
			Kind:  KindFromName(name),
			Entry: entry,
		}
		if entry {
			a.Origin = name
		}
		set.Put(a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load bundle dir %s: %w", dir, err)
	}

	for name := range entrySet {
		if !set.Has(name) {
			return nil, fmt.Errorf("entry %q not found in bundle dir %s", name, dir)
		}
	}
	return set, nil
}
