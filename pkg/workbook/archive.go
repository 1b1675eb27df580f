package workbook

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// DefaultMaxEntrySize bounds the uncompressed size of the markup entry.
const DefaultMaxEntrySize int64 = 256 << 20

const markupExt = ".twb"

// zip local file header
var zipMagic = []byte("PK\x03\x04")

// Payload is the unwrapped workbook markup.
type Payload struct {
	Name   string // entry name inside the package, or the file name
	Format SourceFormat
	Data   []byte
}

// ArchiveOptions tunes ReadArchive.
type ArchiveOptions struct {
	MaxEntrySize int64 // 0 means DefaultMaxEntrySize
}

// ReadArchive unwraps a workbook file. Zip containers must hold exactly one
// top-level .twb entry; a nested one is accepted only when there is no
// top-level entry. Extract data (Data/, .hyper, .tde) is never read.
// Anything that is not a zip container is treated as flat markup.
func ReadArchive(name string, data []byte, opts ArchiveOptions) (*Payload, error) {
	limit := opts.MaxEntrySize
	if limit <= 0 {
		limit = DefaultMaxEntrySize
	}

	if !bytes.HasPrefix(data, zipMagic) {
		if !looksLikeMarkup(data) {
			return nil, &ArchiveError{File: name, Message: "neither a zip package nor workbook markup"}
		}
		if int64(len(data)) > limit {
			return nil, &ArchiveError{File: name, Message: fmt.Sprintf("markup exceeds %d bytes", limit)}
		}
		return &Payload{Name: path.Base(name), Format: FormatFlat, Data: data}, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ArchiveError{File: name, Message: "invalid zip package", Err: err}
	}

	entry, err := selectMarkupEntry(zr.File)
	if err != nil {
		return nil, &ArchiveError{File: name, Message: "cannot select workbook entry", Err: err}
	}
	if entry.UncompressedSize64 > uint64(limit) {
		return nil, &ArchiveError{File: name, Message: fmt.Sprintf("%s exceeds %d bytes", entry.Name, limit)}
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, &ArchiveError{File: name, Message: "open " + entry.Name, Err: err}
	}
	defer rc.Close()

	// The header size can lie; read one byte past the limit to notice.
	body, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, &ArchiveError{File: name, Message: "read " + entry.Name, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &ArchiveError{File: name, Message: fmt.Sprintf("%s exceeds %d bytes", entry.Name, limit)}
	}

	return &Payload{Name: entry.Name, Format: FormatPackaged, Data: body}, nil
}

// selectMarkupEntry picks the single workbook entry of a package.
func selectMarkupEntry(files []*zip.File) (*zip.File, error) {
	var top, nested []*zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() || isExtractData(f.Name) {
			continue
		}
		if !strings.EqualFold(path.Ext(f.Name), markupExt) {
			continue
		}
		if strings.Contains(strings.TrimPrefix(f.Name, "/"), "/") {
			nested = append(nested, f)
		} else {
			top = append(top, f)
		}
	}

	switch {
	case len(top) == 1:
		return top[0], nil
	case len(top) > 1:
		return nil, fmt.Errorf("%d top-level workbook entries", len(top))
	case len(nested) == 1:
		return nested[0], nil
	case len(nested) > 1:
		return nil, fmt.Errorf("%d nested workbook entries and none at top level", len(nested))
	}
	return nil, ErrNoMarkup
}

func isExtractData(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "data/") {
		return true
	}
	switch path.Ext(lower) {
	case ".hyper", ".tde":
		return true
	}
	return false
}

// looksLikeMarkup accepts input whose first non-space byte opens a tag,
// after an optional byte order mark.
func looksLikeMarkup(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == '<'
}

// IsNoMarkup reports whether err means the package held no workbook entry.
func IsNoMarkup(err error) bool {
	return errors.Is(err, ErrNoMarkup)
}
