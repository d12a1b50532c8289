package ingest

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// ParseFile parses an upload by filename, unwrapping .gz and .zip archives
// first and picking the delimiter from the inner file extension.
func ParseFile(filename string, r io.Reader) (*table.Table, error) {
	inner, reader, err := unwrap(filename, r)
	if err != nil {
		return nil, err
	}

	opts := Options{}
	if strings.EqualFold(filepath.Ext(inner), ".tsv") {
		opts.Delimiter = '\t'
	}
	return Parse(reader, opts)
}

// unwrap removes one layer of compression and returns the inner filename.
func unwrap(filename string, r io.Reader) (string, io.Reader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gz":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad gzip stream: %v", table.ErrInvalidFormat, err)
		}
		return strings.TrimSuffix(filename, filepath.Ext(filename)), gr, nil
	case ".zip":
		return unwrapZip(r)
	default:
		return filename, r, nil
	}
}

// unwrapZip extracts the largest regular file in the archive, matching how
// data exports usually bundle one big CSV with sidecar files.
func unwrapZip(r io.Reader) (string, io.Reader, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("reading zip upload: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad zip archive: %v", table.ErrInvalidFormat, err)
	}

	var largest *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if largest == nil || f.UncompressedSize64 > largest.UncompressedSize64 {
			largest = f
		}
	}
	if largest == nil {
		return "", nil, fmt.Errorf("%w: zip archive has no files", table.ErrInvalidFormat)
	}

	rc, err := largest.Open()
	if err != nil {
		return "", nil, fmt.Errorf("opening %q in zip: %w", largest.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, fmt.Errorf("extracting %q from zip: %w", largest.Name, err)
	}
	return largest.Name, bytes.NewReader(data), nil
}
