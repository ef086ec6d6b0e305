package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/codespot/internal/utils"
)

// Options selects the files Discover returns.
type Options struct {
	// Recursive descends into subdirectories of directory arguments.
	Recursive bool
	// Include keeps only base names matching one of these globs when set.
	Include []string
	// Exclude drops base names matching any of these globs.
	Exclude []string
}

// Discover expands args into image paths. Files named directly are kept even
// when their extension is unsupported so the caller can report them;
// directory entries are limited to supported image formats. Order follows
// args, then lexical order within each directory.
func Discover(args []string, opts Options) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if opts.keep(arg) {
				files = append(files, arg)
			}
			continue
		}
		found, err := discoverInDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func discoverInDirectory(dir string, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsSupportedImage(path) && opts.keep(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// keep applies the exclude globs first, then the include globs.
func (o Options) keep(path string) bool {
	if matchesAny(path, o.Exclude) {
		return false
	}
	return len(o.Include) == 0 || matchesAny(path, o.Include)
}

func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
