// Package jobdesc turns an uploaded job description into an interview role.
package jobdesc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MIMEText = "text/plain"
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// MaxRoleLength caps the role text handed to the interviewer.
	MaxRoleLength = 2000
	// MaxUploadBytes caps accepted uploads.
	MaxUploadBytes = 5 << 20
)

var (
	ErrUnsupportedType = errors.New("jobdesc: unsupported file type")
	ErrEmptyDocument   = errors.New("jobdesc: no text found in document")
)

var (
	xmlTag     = regexp.MustCompile(`<[^>]+>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t\f\v]+`)
)

// DetectMIME resolves the document type from the declared content type, the
// file name and finally the bytes themselves.
func DetectMIME(declared, filename string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	switch declared {
	case MIMEPDF, MIMEDocx, MIMEText:
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MIMEPDF
	case ".docx":
		return MIMEDocx
	case ".txt", ".md":
		return MIMEText
	}
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "text/") {
		return MIMEText
	}
	return sniffed
}

// Extract returns the normalized text of a job description document.
func Extract(mime string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch mime {
	case MIMEText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not utf-8", ErrUnsupportedType)
		}
		text = string(data)
	case MIMEPDF:
		text, err = extractPDF(data)
	case MIMEDocx:
		text, err = extractDocx(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	if err != nil {
		return "", err
	}
	role := Normalize(text)
	if role == "" {
		return "", ErrEmptyDocument
	}
	return role, nil
}

// Normalize collapses whitespace and truncates to MaxRoleLength runes.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	out := strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
	if utf8.RuneCountInString(out) > MaxRoleLength {
		out = strings.TrimSpace(string([]rune(out)[:MaxRoleLength]))
	}
	return out
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	// Paragraph ends become line breaks before the markup is dropped.
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	return xmlTag.ReplaceAllString(content, ""), nil
}

// ReadLimited reads at most MaxUploadBytes from r.
func ReadLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("jobdesc: upload exceeds %d bytes", MaxUploadBytes)
	}
	return data, nil
}
