// Package archive implements the backup archive format: a gzip-compressed
// tar stream whose entries are either structural metadata documents (JSON,
// under "meta/") or raw content blobs (under "content/"). Content blobs are
// stored exactly as given; payload encryption happened before they reached
// the archive.
package archive

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	// MetaPrefix marks JSON metadata documents describing structure.
	MetaPrefix = "meta/"
	// ContentPrefix marks raw (already encrypted) content blobs.
	ContentPrefix = "content/"
)

// Writer streams entries into a compressed archive.
type Writer struct {
	gz *gzip.Writer
	tw *tar.Writer
}

// NewWriter wraps w in a gzip-compressed tar writer.
func NewWriter(w io.Writer) *Writer {
	gz := gzip.NewWriter(w)
	return &Writer{gz: gz, tw: tar.NewWriter(gz)}
}

// WriteMeta serializes v to JSON and stores it under meta/<name>.json.
func (w *Writer) WriteMeta(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal meta %s: %w", name, err)
	}
	return w.write(MetaPrefix+name+".json", data)
}

// WriteContent stores data verbatim under content/<name>.
func (w *Writer) WriteContent(name string, data []byte) error {
	return w.write(ContentPrefix+name, data)
}

func (w *Writer) write(name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o600,
		Size:    int64(len(data)),
		ModTime: time.Now().UTC(),
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("write body %s: %w", name, err)
	}
	return nil
}

// Close flushes the tar and gzip layers. Must be called before the archive
// is read back, or the stream is truncated.
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		return err
	}
	return w.gz.Close()
}

// Entry is one extracted archive entry.
type Entry struct {
	// Name is the entry path with its meta/ or content/ prefix stripped
	// (and ".json" stripped for metadata documents).
	Name string
	// Meta is true for structural metadata documents.
	Meta bool
	// Body is the entry payload.
	Body []byte
}

// Reader iterates over the entries of a compressed archive.
type Reader struct {
	gz *gzip.Reader
	tr *tar.Reader
}

// NewReader opens a compressed archive for reading.
func NewReader(r io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Reader{gz: gz, tr: tar.NewReader(gz)}, nil
}

// Next returns the next entry, or io.EOF when the archive is exhausted.
// Entries with unknown prefixes are skipped.
func (r *Reader) Next() (*Entry, error) {
	for {
		hdr, err := r.tr.Next()
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(r.tr)
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", hdr.Name, err)
		}

		switch {
		case strings.HasPrefix(hdr.Name, MetaPrefix):
			name := strings.TrimSuffix(strings.TrimPrefix(hdr.Name, MetaPrefix), ".json")
			return &Entry{Name: name, Meta: true, Body: body}, nil
		case strings.HasPrefix(hdr.Name, ContentPrefix):
			return &Entry{Name: strings.TrimPrefix(hdr.Name, ContentPrefix), Body: body}, nil
		}
	}
}

// Close releases the gzip reader.
func (r *Reader) Close() error {
	return r.gz.Close()
}

// ReadAll extracts every entry of a compressed archive into memory,
// keyed by prefix-stripped name. Metadata and content live in separate maps
// so a name may appear in both.
func ReadAll(src io.Reader) (meta map[string][]byte, content map[string][]byte, err error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	meta = make(map[string][]byte)
	content = make(map[string][]byte)
	for {
		e, err := r.Next()
		if err == io.EOF {
			return meta, content, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if e.Meta {
			meta[e.Name] = e.Body
		} else {
			content[e.Name] = e.Body
		}
	}
}
