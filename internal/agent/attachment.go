package agent

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PDFRenderDPI is the resolution the first page of a PDF is rasterized at.
const PDFRenderDPI = 150

// EncodeAttachment returns a data URI for the file at path: the first page of
// a PDF rendered to PNG, or the raw bytes of an image.
func EncodeAttachment(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		img, err := renderFirstPage(path)
		if err != nil {
			return "", err
		}
		return dataURI("image/png", img), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading attachment: %w", err)
	}
	return dataURI(http.DetectContentType(data), data), nil
}

func renderFirstPage(path string) ([]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf %s has no pages", filepath.Base(path))
	}
	img, err := doc.ImageDPI(0, PDFRenderDPI)
	if err != nil {
		return nil, fmt.Errorf("rendering pdf page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding page image: %w", err)
	}
	return buf.Bytes(), nil
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
