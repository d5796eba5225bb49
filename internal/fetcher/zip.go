package fetcher

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/rotisserie/eris"
)

// ExtractZIPFlat extracts every file entry of a ZIP archive directly into
// destDir, discarding directory components. Each entry is written to a
// temporary file and renamed into place, so a reader never sees a partial
// file. Entries whose name ends in commitExt (case-insensitive) are renamed
// last; their presence therefore marks a completed extraction.
// Returns the extracted paths in the order they were committed.
func ExtractZIPFlat(zipPath, destDir, commitExt string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}

	isCommit := func(f *zip.File) bool {
		return commitExt != "" && strings.HasSuffix(strings.ToLower(f.Name), strings.ToLower(commitExt))
	}
	sort.SliceStable(files, func(i, j int) bool {
		return !isCommit(files[i]) && isCommit(files[j])
	})

	extracted := make([]string, 0, len(files))
	for _, f := range files {
		p, err := extractFlatEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		extracted = append(extracted, p)
	}
	return extracted, nil
}

func extractFlatEntry(f *zip.File, destDir string) (string, error) {
	name := path.Base(f.Name)
	if name == "." || name == ".." || name == "/" || strings.ContainsAny(name, `/\`) {
		return "", eris.Errorf("zip: illegal entry name %q", f.Name)
	}
	destPath := filepath.Join(destDir, name)

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	tmpPath := filepath.Join(destDir, "."+name+"."+uuid.NewString()+".tmp")
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", eris.Wrapf(err, "zip: create %s", tmpPath)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", eris.Wrapf(err, "zip: close %s", tmpPath)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", eris.Wrapf(err, "zip: commit %s", destPath)
	}
	return destPath, nil
}

// ListZIP returns the names the file entries of an archive take when
// extracted by ExtractZIPFlat.
func ListZIP(zipPath string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var names []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			names = append(names, path.Base(f.Name))
		}
	}
	return names, nil
}
