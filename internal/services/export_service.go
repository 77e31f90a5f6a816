// internal/services/export_service.go
package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/fumiama/go-docx"
	"github.com/go-pdf/fpdf"

	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
	"github.com/Corphon/CineWeaverMCP/internal/models"
	"github.com/Corphon/CineWeaverMCP/internal/parser"
	"github.com/Corphon/CineWeaverMCP/internal/utils"
)

// 导出格式
const (
	FormatTXT  = "txt"
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
)

// PDF页面参数：Letter纸张、Times 11pt正文、54pt页边距、14pt行距
const (
	pdfMargin      = 54.0
	pdfFontSize    = 11.0
	pdfLeading     = 14.0
	pdfTitleSize   = 14.0
	pdfTitleOffset = 22.0
)

// artifactTitles 产物类型到文档标题的映射
var artifactTitles = map[string]string{
	"screenplay":   "Screenplay",
	"characters":   "Character Profiles",
	"sound_design": "Sound Design Plan",
}

// ExportService 产物导出服务
type ExportService struct {
	logger  *utils.Logger
	metrics *utils.MetricsCollector
}

// NewExportService 创建导出服务
func NewExportService() *ExportService {
	return &ExportService{
		logger:  utils.GetLogger(),
		metrics: utils.GetMetrics(),
	}
}

// ArtifactTitle 解析产物类型对应的文档标题
func ArtifactTitle(artifactType string) (string, error) {
	title, ok := artifactTitles[artifactType]
	if !ok {
		return "", apperrors.NewUnknownArtifactType(artifactType)
	}
	return title, nil
}

// Render 将文本内容渲染为指定格式的下载文件
func (s *ExportService) Render(artifactType, title, content, format string) (*models.ExportResult, error) {
	result, err := s.render(artifactType, title, content, format)
	s.metrics.RecordExport(err != nil)
	return result, err
}

func (s *ExportService) render(artifactType, title, content, format string) (*models.ExportResult, error) {
	fileName := fmt.Sprintf("%s_%s.%s", artifactType, time.Now().UTC().Format("20060102_150405"), format)

	switch format {
	case FormatTXT:
		return &models.ExportResult{
			FileName:    fileName,
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(content),
		}, nil

	case FormatPDF:
		data, err := renderPDF(title, content)
		if err != nil {
			return nil, apperrors.NewProcessingError("PDF rendering failed", err)
		}
		return &models.ExportResult{
			FileName:    fileName,
			ContentType: "application/pdf",
			Data:        data,
		}, nil

	case FormatDOCX:
		data, err := renderDOCX(title, content)
		if err != nil {
			return nil, apperrors.NewProcessingError("DOCX rendering failed", err)
		}
		return &models.ExportResult{
			FileName:    fileName,
			ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Data:        data,
		}, nil

	default:
		return nil, apperrors.NewUnsupportedFormat(format)
	}
}

// renderPDF 渲染多页PDF：加粗标题、按页宽折行、手动分页
func renderPDF(title, content string) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageWidth, pageHeight := pdf.GetPageSize()
	maxWidth := pageWidth - 2*pdfMargin

	y := pdfMargin
	pdf.SetFont("Times", "", pdfFontSize)

	if title != "" {
		pdf.SetFont("Times", "B", pdfTitleSize)
		pdf.Text(pdfMargin, y, title)
		y += pdfTitleOffset
		pdf.SetFont("Times", "", pdfFontSize)
	}

	measure := func(s string) float64 { return pdf.GetStringWidth(s) }

	text := parser.NormalizeNewlines(content)
	for _, rawLine := range strings.Split(text, "\n") {
		for _, line := range wrapLine(measure, rawLine, maxWidth) {
			if y >= pageHeight-pdfMargin {
				pdf.AddPage()
				y = pdfMargin
				pdf.SetFont("Times", "", pdfFontSize)
			}
			pdf.Text(pdfMargin, y, line)
			y += pdfLeading
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapLine 按渲染宽度折行；超宽的单词按字符硬切
func wrapLine(measure func(string) float64, line string, maxWidth float64) []string {
	if line == "" {
		return []string{""}
	}

	var out []string
	current := ""
	for _, word := range strings.Split(line, " ") {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if measure(candidate) <= maxWidth {
			current = candidate
			continue
		}

		if current != "" {
			out = append(out, current)
		}

		if measure(word) > maxWidth {
			chunk := ""
			for _, ch := range word {
				cand := chunk + string(ch)
				if measure(cand) <= maxWidth {
					chunk = cand
				} else {
					out = append(out, chunk)
					chunk = string(ch)
				}
			}
			current = chunk
		} else {
			current = word
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// renderDOCX 渲染DOCX：居中加粗标题 + 每行一个段落
func renderDOCX(title, content string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	if title != "" {
		para := doc.AddParagraph().Justification("center")
		para.AddText(title).Size("28").Bold()
	}

	// 字号以半磅计："22" 即 11pt 正文
	text := parser.NormalizeNewlines(content)
	for _, line := range strings.Split(text, "\n") {
		doc.AddParagraph().AddText(line).Size("22")
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
