package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

var gzipWriters = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestCompression)
		return w
	},
}

// CompressString gzips input at BestCompression and returns it base64
// encoded, so it can live inside a JSON document in BoltDB.
func CompressString(input string) (string, error) {
	var buf bytes.Buffer
	zw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(zw)
	zw.Reset(&buf)

	if _, err := io.WriteString(zw, input); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressString reverses CompressString.
func DecompressString(input string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", err
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var out strings.Builder
	if _, err := io.Copy(&out, zr); err != nil {
		return "", err
	}
	return out.String(), nil
}

// CacheKey joins parts into a cache key that ignores case and runs of
// whitespace, so "Ed  Sheeran" and "ed sheeran" share an entry.
func CacheKey(prefix string, parts ...string) string {
	fold := cases.Fold()

	var b strings.Builder
	b.WriteString(prefix)
	for _, part := range parts {
		b.WriteByte(':')
		b.WriteString(fold.String(strings.Join(strings.Fields(part), " ")))
	}
	return b.String()
}
