// Package statestore persists the id→last-timestamp cursor map across
// restarts, using an atomic-write pattern: temp file in the same
// directory, fsynced, then renamed over the final path.
package statestore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads the persisted id→timestamp map from path. It never returns
// an error: a missing file yields an empty map, and lines without a tab
// separator are skipped, so a file with no well-formed lines also yields
// an empty map. The timestamp part of a line is not validated.
func Load(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		return map[string]string{}
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		id, ts, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		out[id] = ts
	}
	return out
}

// Save writes state to path atomically: a temp file in the same
// directory, fsynced and closed, then renamed over the final path, so a
// crash mid-write never corrupts the last good checkpoint.
func Save(path string, state map[string]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".mobystash-state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	for id, ts := range state {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", id, ts); err != nil {
			tmp.Close()
			return fmt.Errorf("writing state entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming state file to %s: %w", path, err)
	}

	success = true
	return nil
}
