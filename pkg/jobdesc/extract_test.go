package jobdesc

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	got, err := Extract(MIMEText, []byte("  Senior   Backend Engineer \r\n\r\n\r\n\r\nGo,  Postgres\t and Kafka  "))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "Senior Backend Engineer\n\nGo, Postgres and Kafka"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestExtractErrors(t *testing.T) {
	if _, err := Extract("image/png", []byte{1}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	if _, err := Extract(MIMEText, []byte("   \n  ")); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected empty document, got %v", err)
	}
	if _, err := Extract(MIMEPDF, []byte("not a pdf")); err == nil {
		t.Fatalf("expected pdf parse error")
	}
	if _, err := Extract(MIMEDocx, []byte("not a zip")); err == nil {
		t.Fatalf("expected docx parse error")
	}
}

func TestNormalizeTruncates(t *testing.T) {
	got := Normalize(strings.Repeat("é", MaxRoleLength+10))
	if n := len([]rune(got)); n != MaxRoleLength {
		t.Fatalf("expected %d runes, got %d", MaxRoleLength, n)
	}
}

func TestDetectMIME(t *testing.T) {
	cases := []struct {
		declared, name string
		data           []byte
		want           string
	}{
		{"application/pdf", "x", nil, MIMEPDF},
		{"application/octet-stream", "jd.docx", nil, MIMEDocx},
		{"", "jd.TXT", nil, MIMEText},
		{"", "upload", []byte("Staff engineer"), MIMEText},
		{"text/plain; charset=utf-8", "", nil, MIMEText},
	}
	for _, tc := range cases {
		if got := DetectMIME(tc.declared, tc.name, tc.data); got != tc.want {
			t.Fatalf("DetectMIME(%q, %q) = %q, want %q", tc.declared, tc.name, got, tc.want)
		}
	}
}

func TestReadLimited(t *testing.T) {
	if _, err := ReadLimited(strings.NewReader(strings.Repeat("a", MaxUploadBytes+1))); err == nil {
		t.Fatalf("expected size error")
	}
	data, err := ReadLimited(strings.NewReader("ok"))
	if err != nil || string(data) != "ok" {
		t.Fatalf("got %q, %v", data, err)
	}
}
