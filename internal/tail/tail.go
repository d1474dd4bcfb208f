// Package tail reads newly appended lines from a continuously written
// device log file. Callers track their own byte offset, which keeps
// concurrent readers of the same file independent without locking.
package tail

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Size returns the current file size in bytes, or 0 when the file does
// not exist or cannot be stat'd.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// ReadNew returns the lines appended since offset and the new offset.
//
// A file smaller than offset is treated as rotated or truncated and
// reading restarts from zero; data may be re-delivered or skipped across
// the rotation boundary. A missing file or any read failure yields no
// lines and an unchanged offset so the caller simply retries on its next
// poll. Invalid byte sequences are replaced, never escalated.
//
// A trailing fragment without a terminating newline is returned as a
// line rather than buffered until the writer completes it.
func ReadNew(path string, offset int64) ([]string, int64) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, offset
	}

	size := info.Size()
	if size < offset {
		// Rotation or truncation: start over.
		offset = 0
	}
	if size == offset {
		return nil, offset
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, offset
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, offset
	}

	return splitLines(decode(raw)), offset + int64(len(raw))
}

// decode converts raw bytes to text, substituting the Unicode
// replacement character for invalid sequences.
func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		lines = append(lines, strings.TrimSuffix(part, "\r"))
	}
	return lines
}
