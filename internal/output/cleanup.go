package output

import (
	"os"
	"path/filepath"
)

// KeptFiles lists the files Cleanup leaves in place.
func KeptFiles(out string) map[string]struct{} {
	if out == "" {
		out = DefaultOut
	}
	kept := map[string]struct{}{}
	for _, name := range []string{out, CoursesFile, CampiFile, UnitsFile} {
		kept[name] = struct{}{}
		kept[name+gzip_ext] = struct{}{}
		kept[name+brotli_ext] = struct{}{}
	}
	return kept
}

// Cleanup removes every file of dir but the aggregate datasets, and returns
// the paths it removed. Directories are left alone.
func Cleanup(dir, out string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	kept := KeptFiles(out)

	var removed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, keep := kept[e.Name()]; keep {
			continue
		}
		path := filepath.Join(dir, e.Name())
		err = os.Remove(path)
		if err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}
