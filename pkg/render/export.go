// Package render writes converted images to disk.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// Format is an output file format.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// FormatFor picks the format from the file extension. Anything that is not
// .pdf is written as PNG.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return FormatPDF
	}
	return FormatPNG
}

// Export writes a PNG image to path, wrapping it in a single-page PDF when
// path ends in .pdf. Parent directories are created as needed and an
// existing file is replaced.
func Export(png []byte, path string) error {
	if path == "" {
		return fmt.Errorf("output path is required")
	}
	if len(png) == 0 {
		return fmt.Errorf("no image data to export")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	switch FormatFor(path) {
	case FormatPDF:
		return writePDF(png, path)
	default:
		if err := os.WriteFile(path, png, 0644); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
		return nil
	}
}

func writePDF(png []byte, path string) error {
	tmp, err := os.CreateTemp("", "browserapi-*.png")
	if err != nil {
		return fmt.Errorf("failed to stage image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage image: %w", err)
	}

	// pdfcpu appends to an existing PDF instead of replacing it.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	if err := api.ImportImagesFile([]string{tmp.Name()}, path, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
