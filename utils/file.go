package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SanitizeFileName replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, filepath.Base(name))
}

// TimestampedName inserts a unix timestamp before the extension:
// report.pdf becomes report_1700000000.pdf.
func TimestampedName(name string, t time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%d%s", base, t.Unix(), ext)
}

// CopyFileWithTimestamp copies a file to the destination directory with a timestamp suffix
// Returns the destination path and error if any
func CopyFileWithTimestamp(sourcePath, uploadDir string) (string, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %v", err)
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %v", err)
	}
	defer sourceFile.Close()

	destFileName := TimestampedName(SanitizeFileName(sourcePath), time.Now())
	destPath := filepath.Join(uploadDir, destFileName)

	destFile, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %v", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return "", fmt.Errorf("failed to copy file: %v", err)
	}

	return destPath, nil
}
