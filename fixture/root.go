package fixture

import (
	"os"
	"path/filepath"

	"github.com/lattice-substrate/json-conform/conferr"
)

// FindRoot walks upward from start until it finds a directory containing a
// "data" or "crash-data" subdirectory and returns that directory.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", conferr.Wrap(conferr.ConfigInvalid, start, "resolve start directory", err)
	}
	for {
		if isDir(filepath.Join(dir, SuccessDir)) || isDir(filepath.Join(dir, CrashDir)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", conferr.Newf(conferr.ConfigInvalid, start,
				"no %s or %s directory found in any parent", SuccessDir, CrashDir)
		}
		dir = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
