// Package output writes run artifacts atomically.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Standard artifact names inside a run directory.
const (
	DecisionsFile     = "decisions.json"
	IssuesFile        = "issues.json"
	SummaryFile       = "summary.json"
	CostBreakdownFile = "cost_breakdown.json"
	BatchCostsFile    = "costs.json"
	DiffReportFile    = "diff_report.json"
	RefreshFile       = "refresh_needed.json"
)

// runDirLayout is the timestamp prefix of a run directory.
const runDirLayout = "20060102T150405Z"

// WriteFile writes data to path through a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "output: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "output: create temp for %s", path)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrapf(err, "output: write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrapf(err, "output: sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return eris.Wrapf(err, "output: close %s", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return eris.Wrapf(err, "output: chmod %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return eris.Wrapf(err, "output: rename %s", path)
	}
	return nil
}

// WriteJSON marshals v with two-space indentation and writes it atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "output: marshal %s", path)
	}
	return WriteFile(path, append(data, '\n'))
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "output: create dir %s", dir)
}

// RunDir returns the directory for a run of the given kind under root,
// named <UTC timestamp>_<kind>.
func RunDir(root, kind string, now time.Time) string {
	return filepath.Join(root, fmt.Sprintf("%s_%s", now.UTC().Format(runDirLayout), kind))
}

// CreateRunDir creates a run directory, adding a numeric suffix when a run of
// the same kind already exists for the same second.
func CreateRunDir(root, kind string, now time.Time) (string, error) {
	base := RunDir(root, kind, now)
	dir := base
	for i := 2; ; i++ {
		err := os.MkdirAll(filepath.Dir(dir), 0o755)
		if err != nil {
			return "", eris.Wrapf(err, "output: create runs root %s", root)
		}
		err = os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", eris.Wrapf(err, "output: create run dir %s", dir)
		}
		dir = fmt.Sprintf("%s_%d", base, i)
	}
}
