// Package archive persists finished interview reports.
package archive

import (
	"errors"
	"regexp"

	"github.com/harunnryd/mockview/pkg/redact"
	"github.com/harunnryd/mockview/pkg/report"
)

var (
	ErrNotFound  = errors.New("archive: report not found")
	ErrInvalidID = errors.New("archive: invalid report id")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validID(id string) bool {
	return idPattern.MatchString(id)
}

// scrub applies PII redaction to the free text of a report before it is stored.
func scrub(r report.Report) report.Report {
	if !redact.Enabled() {
		return r
	}
	out := r
	out.Transcript = r.Transcript.Clone()
	for i := range out.Transcript {
		out.Transcript[i].Text = redact.Text(out.Transcript[i].Text)
	}
	out.Feedback = redact.Text(r.Feedback)
	return out
}
