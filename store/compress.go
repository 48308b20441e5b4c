package store

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// skipExtensions lists file types that are already compressed. Gzipping
// these wastes CPU for no savings, so they are stored as-is regardless of
// the measured ratio.
var skipExtensions = map[string]struct{}{
	// images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".heic": {}, ".avif": {},
	// audio
	".mp3": {}, ".aac": {}, ".m4a": {}, ".ogg": {}, ".opus": {}, ".flac": {},
	// video
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".webm": {}, ".m4v": {},
	// archives and packages
	".zip": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".zst": {},
	".rar": {}, ".7z": {}, ".apk": {}, ".jar": {},
	// container formats with internal compression
	".pdf": {}, ".docx": {}, ".xlsx": {}, ".pptx": {}, ".odt": {},
}

// compressionSavingsPct is the minimum size reduction, in percent, required
// for the compressed form to be stored instead of the original bytes.
const compressionSavingsPct = 5

// shouldSkipCompression reports whether the filename's extension marks a
// pre-compressed format.
func shouldSkipCompression(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, skip := skipExtensions[ext]
	return skip
}

// selectCompression decides whether payload benefits from gzip. It returns
// the bytes to store and whether they are compressed. It never fails: any
// compression problem falls back to the original payload.
func selectCompression(payload []byte, name string) ([]byte, bool) {
	if shouldSkipCompression(name) {
		return payload, false
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return payload, false
	}
	if err := zw.Close(); err != nil {
		return payload, false
	}

	// Keep the compressed form only when it saves at least 5%.
	if buf.Len()*100 > len(payload)*(100-compressionSavingsPct) {
		return payload, false
	}
	return buf.Bytes(), true
}

// gunzip inflates a gzip stream produced by selectCompression.
func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
