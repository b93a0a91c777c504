package store

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

const DefaultPDFImportDPI = 150

// RenderPDFPages rasterizes every page of a PDF into an image, in page
// order. Storyboard PDFs imported this way become one frame per page.
func RenderPDFPages(data []byte, dpi int) ([]image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultPDFImportDPI
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]image.Image, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render pdf page %d: %w", i, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
