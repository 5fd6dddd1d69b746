package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// tabularExts lists the entry extensions ExtractTabular accepts, in no
// particular priority; archive order decides.
var tabularExts = map[string]bool{".csv": true, ".xlsx": true, ".json": true}

// maxEntryBytes caps the decompressed size of an extracted entry.
const maxEntryBytes = 2 << 30

// ExtractTabular extracts the first CSV, XLSX or JSON entry of a ZIP archive
// into destDir and returns its path. Registry extracts ship as a single
// tabular file, sometimes alongside a readme.
func ExtractTabular(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if tabularExts[strings.ToLower(filepath.Ext(f.Name))] {
			return extractZIPEntry(f, destDir)
		}
	}

	return "", eris.New("zip: no csv, xlsx or json entry in archive")
}

// extractZIPEntry extracts a single zip.File to the destination directory.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	if n > maxEntryBytes {
		return "", eris.Errorf("zip: entry %q exceeds %d bytes", f.Name, int64(maxEntryBytes))
	}

	return destPath, nil
}
