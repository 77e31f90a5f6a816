// internal/services/export_service_test.go
package services

import (
	"bytes"
	"strings"
	"testing"

	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
)

func TestArtifactTitle(t *testing.T) {
	cases := []struct {
		artifactType string
		want         string
		wantErr      bool
	}{
		{"screenplay", "Screenplay", false},
		{"characters", "Character Profiles", false},
		{"sound_design", "Sound Design Plan", false},
		{"storyboard", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		title, err := ArtifactTitle(tc.artifactType)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ArtifactTitle(%q): expected error", tc.artifactType)
			}
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Type != apperrors.ErrorTypeUnknownArtifactType {
				t.Fatalf("ArtifactTitle(%q): wrong error %v", tc.artifactType, err)
			}
			continue
		}
		if err != nil || title != tc.want {
			t.Fatalf("ArtifactTitle(%q) = (%q, %v), want %q", tc.artifactType, title, err, tc.want)
		}
	}
}

func TestRender_TXTPassthrough(t *testing.T) {
	service := NewExportService()
	content := "INT. CAFE - DAY\n\nRain on the windows. Chai steam rises."

	result, err := service.Render("screenplay", "Screenplay", content, FormatTXT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Data) != content {
		t.Fatalf("txt export must be byte-exact")
	}
	if result.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type: %q", result.ContentType)
	}
	if !strings.HasPrefix(result.FileName, "screenplay_") || !strings.HasSuffix(result.FileName, ".txt") {
		t.Fatalf("unexpected file name: %q", result.FileName)
	}
}

func TestRender_PDFHasHeader(t *testing.T) {
	service := NewExportService()

	result, err := service.Render("screenplay", "Screenplay", "INT. CAFE - DAY\n\nA quiet morning.", FormatPDF)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(result.Data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
	if result.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type: %q", result.ContentType)
	}
}

func TestRender_PDFHandlesLongContent(t *testing.T) {
	service := NewExportService()

	// enough lines to force several page breaks
	content := strings.Repeat("A line of steady action that keeps the reader moving through the scene.\n", 300)
	result, err := service.Render("screenplay", "Screenplay", content, FormatPDF)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Data) == 0 {
		t.Fatalf("empty PDF output")
	}
}

func TestRender_DOCXIsZipArchive(t *testing.T) {
	service := NewExportService()

	result, err := service.Render("characters", "Character Profiles", "Name: Ira\nAge: 29", FormatDOCX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// OOXML containers are zip archives
	if !bytes.HasPrefix(result.Data, []byte("PK")) {
		t.Fatalf("output is not a DOCX container")
	}
	if result.ContentType != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Fatalf("unexpected content type: %q", result.ContentType)
	}
}

func TestRender_UnsupportedFormat(t *testing.T) {
	service := NewExportService()

	_, err := service.Render("screenplay", "Screenplay", "content", "epub")
	if err == nil {
		t.Fatalf("expected error")
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Type != apperrors.ErrorTypeUnsupportedFormat {
		t.Fatalf("expected unsupported_format, got %v", err)
	}
}

func TestWrapLine_WidthMeasuredWrap(t *testing.T) {
	// 10 units per character makes widths easy to reason about
	measure := func(s string) float64 { return float64(len(s) * 10) }

	cases := []struct {
		name     string
		line     string
		maxWidth float64
		want     []string
	}{
		{"empty line kept", "", 100, []string{""}},
		{"fits on one line", "abc def", 100, []string{"abc def"}},
		{"wraps at word boundary", "aaaa bbbb cccc", 90, []string{"aaaa bbbb", "cccc"}},
		{"oversized word hard-split", "abcdefghijkl", 50, []string{"abcde", "fghij", "kl"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wrapLine(measure, tc.line, tc.maxWidth)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("line %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}
