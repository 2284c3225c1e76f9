package disclosure

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var docEntryRe = regexp.MustCompile(`(?i)\.(xml|htm|html)$`)

// ExtractDocumentText opens a disclosure document bundle and returns the
// sanitized text of its first XML/HTML entry. Older filings arrive in EUC-KR.
func ExtractDocumentText(zipBytes []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "", fmt.Errorf("document bundle unreadable: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !docEntryRe.MatchString(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("document entry %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("document entry %s: %w", f.Name, err)
		}
		if !utf8.Valid(raw) {
			decoded, _, derr := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
			if derr == nil {
				raw = decoded
			}
		}
		return Sanitize(string(raw)), nil
	}
	return "", fmt.Errorf("document bundle holds no xml/html entry")
}

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Sanitize strips markup and collapses whitespace, leaving one line of plain
// text for the extraction prompt.
func Sanitize(markup string) string {
	if markup == "" {
		return ""
	}
	text := markup
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
		text = doc.Text()
	} else {
		text = tagRe.ReplaceAllString(markup, " ")
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
