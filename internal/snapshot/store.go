// Package snapshot persists dated coin snapshots to the data directory.
//
// The JSON file is the canonical source of truth; CSV and Parquet exports
// are derived from it and written best-effort — a derived-format failure is
// logged but never corrupts the canonical file.
package snapshot

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
)

const (
	filePrefix = "crypto_data_"
	fileExt    = ".json"
)

// Store reads and writes snapshot files in a single data directory.
type Store struct {
	dir string
}

// New creates the data directory if needed and returns a store for it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "snapshot: create data dir")
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory path.
func (s *Store) Dir() string { return s.dir }

// LatestPath returns the snapshot file with the newest modification time.
// ok is false when no snapshot exists yet.
func (s *Store) LatestPath() (path string, ok bool, err error) {
	files, err := s.Files()
	if err != nil {
		return "", false, err
	}

	var latest string
	var latestMod int64
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().UnixNano() > latestMod {
			latest = f
			latestMod = info.ModTime().UnixNano()
		}
	}
	if latest == "" {
		return "", false, nil
	}
	return latest, true, nil
}

// Files lists all canonical snapshot files, unordered.
func (s *Store) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileExt))
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: glob data dir")
	}
	return files, nil
}

// LoadLatest parses the most recently modified snapshot. It returns
// (nil, nil) when no snapshot has been persisted yet.
func (s *Store) LoadLatest() (*coin.Snapshot, error) {
	path, ok, err := s.LatestPath()
	if err != nil || !ok {
		return nil, err
	}
	return s.Load(path)
}

// Load parses one snapshot file.
func (s *Store) Load(path string) (*coin.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: read file")
	}

	var records []*coin.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrap(err, "snapshot: parse file")
	}

	return &coin.Snapshot{Date: DateOf(path), Records: records}, nil
}

// DateOf extracts the run date from a snapshot file path.
func DateOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileExt)
}

// Persist writes the canonical JSON file for the snapshot's date, then the
// derived CSV and Parquet exports. Only a canonical-write failure is an
// error; export failures are logged and swallowed.
func (s *Store) Persist(snap *coin.Snapshot) error {
	if len(snap.Records) == 0 {
		zap.L().Warn("snapshot: nothing to persist")
		return nil
	}

	base := filepath.Join(s.dir, filePrefix+snap.Date)

	if err := writeJSON(base+fileExt, snap.Records); err != nil {
		return err
	}
	zap.L().Info("persisted snapshot",
		zap.String("date", snap.Date),
		zap.Int("records", len(snap.Records)),
	)

	if err := writeCSV(base+".csv", snap.Records); err != nil {
		zap.L().Warn("snapshot: csv export failed", zap.Error(err))
	}
	if err := writeParquet(base+".parquet", snap.Records); err != nil {
		zap.L().Warn("snapshot: parquet export failed", zap.Error(err))
	}
	return nil
}

// PersistInPlace rewrites an existing snapshot file with backup-and-restore
// semantics: the current content is copied aside first, and a failed write
// puts it back before the error propagates. Used by the price loop, which
// must never leave a half-written canonical file behind.
func (s *Store) PersistInPlace(path string, records []*coin.Record) error {
	backup := path + ".backup"
	hadBackup := false

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, backup); err != nil {
			return eris.Wrap(err, "snapshot: create backup")
		}
		hadBackup = true
	}

	if err := writeJSON(path, records); err != nil {
		if hadBackup {
			if rerr := copyFile(backup, path); rerr != nil {
				zap.L().Error("snapshot: backup restore failed", zap.Error(rerr))
			} else {
				zap.L().Info("restored snapshot from backup", zap.String("path", path))
			}
		}
		return err
	}

	if hadBackup {
		_ = os.Remove(backup)
	}
	return nil
}

func writeJSON(path string, records []*coin.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal records")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "snapshot: write canonical file")
	}
	return nil
}

func writeCSV(path string, records []*coin.Record) error {
	data, err := csvutil.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal csv")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "snapshot: write csv")
}

func writeParquet(path string, records []*coin.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "snapshot: create parquet file")
	}
	defer f.Close() //nolint:errcheck

	rows := make([]coin.Record, 0, len(records))
	for _, r := range records {
		rows = append(rows, *r)
	}

	w := parquet.NewGenericWriter[coin.Record](f)
	if _, err := w.Write(rows); err != nil {
		return eris.Wrap(err, "snapshot: write parquet rows")
	}
	return eris.Wrap(w.Close(), "snapshot: close parquet writer")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck,gosec
		return err
	}
	return out.Close()
}
