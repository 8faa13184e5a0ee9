package richtext

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxInputSize bounds a CV or job description file (1MB).
const MaxInputSize = 1 << 20

// textByExt lists the extensions accepted without sniffing.
var textByExt = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// ReadText loads a plain-text input file. "-" reads r instead. Binary
// documents such as PDF or DOCX are rejected; export them to text first.
func ReadText(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, MaxInputSize+1))
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if len(data) > MaxInputSize {
			return "", fmt.Errorf("stdin exceeds maximum size of 1MB")
		}
		return Normalize(data)
	}

	if err := ValidateFile(path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if !textByExt[strings.ToLower(filepath.Ext(path))] {
		if mime := http.DetectContentType(data); !strings.HasPrefix(mime, "text/") {
			return "", fmt.Errorf("%s is not a text file (detected %s)", filepath.Base(path), mime)
		}
	}
	return Normalize(data)
}

// ValidateFile checks that path is an existing, regular file within the
// size limit.
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", filepath.Base(path), err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", filepath.Base(path))
	}
	if info.Size() > MaxInputSize {
		return fmt.Errorf("%s exceeds maximum size of 1MB", filepath.Base(path))
	}
	return nil
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// Normalize strips a UTF-8 BOM, converts line endings to \n, and returns
// the text in Unicode NFC form.
func Normalize(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, bom)
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("input contains binary data")
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(strings.TrimSpace(s)), nil
}
