package ingest

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/alanlin8901/special-happiness/pkg/document"
)

// Loader reads one file into page-level documents. Chunking happens later.
type Loader func(ctx context.Context, path string) ([]document.Document, error)

// DefaultLoaders maps lower-case extensions to the built-in loaders.
func DefaultLoaders() map[string]Loader {
	return map[string]Loader{
		".pdf":  LoadPDF,
		".docx": LoadDOCX,
		".xlsx": LoadXLSX,
		".txt":  LoadText,
		".md":   LoadText,
	}
}

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".md":   "text/markdown",
}

// fileMetadata returns the metadata every document of path carries.
func fileMetadata(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	ext := strings.ToLower(filepath.Ext(path))
	fileType := mimeTypes[ext]
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	return map[string]string{
		document.MetaFileName:     filepath.Base(path),
		document.MetaFilePath:     abs,
		document.MetaFileType:     fileType,
		document.MetaFileSize:     strconv.FormatInt(info.Size(), 10),
		document.MetaLastModified: info.ModTime().Format("2006-01-02"),
	}, nil
}

func withMeta(base map[string]string, extra ...string) map[string]string {
	out := make(map[string]string, len(base)+len(extra)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(extra); i += 2 {
		out[extra[i]] = extra[i+1]
	}
	return out
}

// =============================================================================
// PDF
// =============================================================================

// LoadPDF returns one document per page with text. Entries of the PDF Info
// dictionary are added as "pdf.<Key>".
func LoadPDF(ctx context.Context, path string) (docs []document.Document, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	base, err := fileMetadata(path)
	if err != nil {
		return nil, err
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	for k, v := range pdfInfo(reader) {
		base["pdf."+k] = v
	}

	for n := 1; n <= reader.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", n, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, document.Document{
			Content:  text,
			Metadata: withMeta(base, document.MetaPageLabel, strconv.Itoa(n)),
		})
	}
	return docs, nil
}

func pdfInfo(reader *pdf.Reader) map[string]string {
	info := reader.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return nil
	}
	out := make(map[string]string)
	for _, k := range info.Keys() {
		v := info.Key(k)
		var s string
		switch v.Kind() {
		case pdf.String:
			s = v.Text()
		case pdf.Name, pdf.Integer, pdf.Real, pdf.Bool:
			s = v.String()
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out[k] = s
		}
	}
	return out
}

// =============================================================================
// Office
// =============================================================================

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>|<w:br/>|<w:tab/>`)
	xmlTag           = regexp.MustCompile(`<[^>]*>`)
)

// LoadDOCX returns the document body as one document.
func LoadDOCX(_ context.Context, path string) ([]document.Document, error) {
	base, err := fileMetadata(path)
	if err != nil {
		return nil, err
	}

	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer r.Close()

	raw := r.Editable().GetContent()
	text := docxParagraphEnd.ReplaceAllString(raw, "\n")
	text = html.UnescapeString(xmlTag.ReplaceAllString(text, ""))
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []document.Document{{Content: text, Metadata: base}}, nil
}

// LoadXLSX returns one document per non-empty sheet. Rows are rendered with
// " | " between cells.
func LoadXLSX(ctx context.Context, path string) ([]document.Document, error) {
	base, err := fileMetadata(path)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	var docs []document.Document
	for i, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		var b strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if strings.Trim(line, "| ") == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if b.Len() == 0 {
			continue
		}
		docs = append(docs, document.Document{
			Content:  b.String(),
			Metadata: withMeta(base, document.MetaPageLabel, strconv.Itoa(i+1), "sheet", sheet),
		})
	}
	return docs, nil
}

// LoadText reads a plain text or markdown file.
func LoadText(_ context.Context, path string) ([]document.Document, error) {
	base, err := fileMetadata(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []document.Document{{Content: string(data), Metadata: base}}, nil
}
