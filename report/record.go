package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// recordExt is the extension of persisted report records.
const recordExt = ".report.msgpack"

// RecordPath returns the record file path for a batch under dir.
func RecordPath(dir, batchID string) string {
	return filepath.Join(dir, batchID+recordExt)
}

// WriteRecord persists the report as a msgpack record under dir,
// creating the directory as needed. Returns the record path.
func WriteRecord(r *BatchReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create report directory %s: %w", dir, err)
	}

	data, err := msgpack.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode report record: %w", err)
	}

	path := RecordPath(dir, r.BatchID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report record %s: %w", path, err)
	}
	return path, nil
}

// ReadRecord loads a persisted report record.
func ReadRecord(path string) (*BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read report record %s: %w", path, err)
	}

	var r BatchReport
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("malformed report record %s: %w", path, err)
	}
	return &r, nil
}

// Latest returns the most recently modified record under dir.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("cannot list report directory %s: %w", dir, err)
	}

	var records []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), recordExt) {
			records = append(records, e)
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no report records in %s", dir)
	}

	sort.Slice(records, func(i, j int) bool {
		fi, errI := records[i].Info()
		fj, errJ := records[j].Info()
		if errI != nil || errJ != nil {
			return records[i].Name() < records[j].Name()
		}
		return fi.ModTime().Before(fj.ModTime())
	})

	return filepath.Join(dir, records[len(records)-1].Name()), nil
}
