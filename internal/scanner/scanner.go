// scanner is used to scan a source root for Birdee modules.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"birdeels/internal/module"
	"birdeels/internal/resolver"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("birdeels.scanner")

// Scan walks the entire subtree under root. Any directory whose name
// begins with "." is skipped entirely. For each file carrying one of the
// extensions that skip() does not reject, the file is read and
// callback(name, path, contents) is invoked with its module name. Scan
// only returns once all callbacks have completed.
func Scan(
	root string,
	extensions []string,
	skip func(path string, info fs.FileInfo) bool,
	callback func(name module.Name, path string, document []byte),
) {
	fileCh := make(chan string, 100)
	var wg sync.WaitGroup

	// worker goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileCh {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Warningf("read error: %s: %v", path, err)
				continue
			}
			name, ok := resolver.ModuleName(root, path)
			if !ok {
				continue
			}
			callback(name, path, data)
		}
	}()

	log.Debugf("starting WalkDir at %q", root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("walk error: %v", err)
			return nil
		}

		if d.IsDir() {
			if path != root && resolver.IgnoreDir(path) {
				log.Debugf("skipping %q", path)
				return fs.SkipDir
			}
			return nil
		}

		if !slices.Contains(extensions, filepath.Ext(path)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if skip != nil && skip(path, info) {
			return nil
		}

		// enqueue for reading
		fileCh <- path
		return nil
	})
	if err != nil {
		log.Warningf("WalkDir finished with error: %v", err)
	}

	// no more files to send
	close(fileCh)
	// wait for the worker to finish consuming and calling back
	wg.Wait()
}
