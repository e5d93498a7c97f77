// Package validate holds the input checks shared by auditctl commands.
package validate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/emailauditor/auditkit/internal/format"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
)

// Email reports whether s looks like an email address.
func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// Mobile reports whether s looks like a phone number: an optional leading
// "+" then at least ten digits, spaces, dashes or parentheses.
func Mobile(s string) bool {
	return mobilePattern.MatchString(s)
}

// DefaultMaxUploadSize is the upload limit used when UploadRules.MaxSize is 0.
const DefaultMaxUploadSize int64 = 5 * 1024 * 1024

// UploadRules constrains a file before it is sent.
type UploadRules struct {
	// AllowedTypes lists accepted content types. Empty accepts any.
	AllowedTypes []string
	// Extensions lists accepted file extensions including the dot. Empty
	// accepts any.
	Extensions []string
	MaxSize    int64
}

// EmailUploadRules matches what /api/audit accepts.
func EmailUploadRules(maxSize int64) UploadRules {
	return UploadRules{Extensions: []string{".eml"}, MaxSize: maxSize}
}

// Upload checks a file against rules.
func Upload(name, contentType string, size int64, rules UploadRules) error {
	if len(rules.AllowedTypes) > 0 && !slices.Contains(rules.AllowedTypes, contentType) {
		return fmt.Errorf("file type not allowed (allowed types: %s)", strings.Join(rules.AllowedTypes, ", "))
	}

	if len(rules.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(name))
		if !slices.ContainsFunc(rules.Extensions, func(allowed string) bool {
			return strings.EqualFold(allowed, ext)
		}) {
			return fmt.Errorf("file extension not allowed (allowed extensions: %s)", strings.Join(rules.Extensions, ", "))
		}
	}

	maxSize := rules.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	if size > maxSize {
		return fmt.Errorf("file too large (maximum size: %s)", format.FileSize(maxSize))
	}
	return nil
}

// Required returns, in order, the names whose values are missing or blank.
func Required(fields map[string]string, names ...string) []string {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
