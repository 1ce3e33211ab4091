// Package source resolves text locators for analysis: plain files,
// SRT subtitle files, or stdin.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Load resolves a locator to the full text it points at. "-" reads
// stdin; files ending in .srt are converted from subtitles to plain
// text first.
func Load(locator string) (string, error) {
	if locator == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return decode(data), nil
	}

	data, err := os.ReadFile(locator)
	if err != nil {
		return "", err
	}
	text := decode(data)

	if strings.EqualFold(filepath.Ext(locator), ".srt") {
		return FromSRT(text), nil
	}
	return text, nil
}

// decode falls back to latin-1 when the bytes are not valid UTF-8,
// matching how older transcript exports tend to be encoded.
func decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// FromSRT extracts the spoken text from SRT subtitles. Cue numbers,
// timing lines and blank lines are dropped; the remaining lines join
// into one continuous string.
func FromSRT(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isDigits(line) || strings.Contains(line, "-->") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
