package sponsor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// cachePayload is the on-disk cache: the unioned strong-sponsor set plus the
// reference files it was built from.
type cachePayload struct {
	Employers   []string `json:"employers"`
	SourceFiles []string `json:"source_files"`
}

// cacheStale reports whether the cache must be rebuilt: it is missing, or
// some reference file has been modified since the cache was written.
func cacheStale(cachePath string, referencePaths []string) bool {
	info, err := os.Stat(cachePath)
	if err != nil {
		return true
	}
	cacheTime := info.ModTime()

	for _, path := range referencePaths {
		src, err := os.Stat(path)
		if err != nil {
			continue
		}
		if src.ModTime().After(cacheTime) {
			return true
		}
	}
	return false
}

func loadCache(path string) (*ReferenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sponsor cache: %w", err)
	}

	var payload cachePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode sponsor cache: %w", err)
	}

	employers := make(map[string]struct{}, len(payload.Employers))
	for _, name := range payload.Employers {
		employers[name] = struct{}{}
	}
	return newReferenceSet(employers), nil
}

func saveCache(path string, set *ReferenceSet, referencePaths []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	payload := cachePayload{
		Employers:   set.Names(), // sorted, so identical sets cache identically
		SourceFiles: referencePaths,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sponsor cache: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sponsor cache: %w", err)
	}
	return nil
}
