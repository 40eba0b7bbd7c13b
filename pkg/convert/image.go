package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	// raster decoders for DecodeConfig/Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/bmp"
)

// ImageConverter packs raster images into a PDF, one image per page, with the
// page size equal to the image's pixel dimensions in points.
type ImageConverter struct{}

// NewImageConverter creates an image-set converter.
func NewImageConverter() *ImageConverter {
	return &ImageConverter{}
}

func (c *ImageConverter) Name() string { return "image" }

func (c *ImageConverter) Convert(ctx context.Context, src []byte) ([]byte, error) {
	return c.ConvertAll(ctx, [][]byte{src})
}

// ConvertAll packs several images into one document, one page each.
func (c *ImageConverter) ConvertAll(_ context.Context, images [][]byte) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	for i, src := range images {
		if err := addImagePage(pdf, fmt.Sprintf("img-%d", i), src); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	return buf.Bytes(), nil
}

func addImagePage(pdf *fpdf.Fpdf, name string, src []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("%w: decode image: %v", ErrBadInput, err)
	}

	var imgType string
	switch format {
	case "png", "jpeg", "gif":
		imgType = strings.ToUpper(format)
	case "bmp":
		// fpdf has no BMP support; re-encode losslessly as PNG.
		src, err = bmpToPNG(src)
		if err != nil {
			return err
		}
		imgType = "PNG"
	default:
		return fmt.Errorf("%w: unsupported raster encoding %q", ErrBadInput, format)
	}

	w, h := float64(cfg.Width), float64(cfg.Height)
	orientation := "P"
	if w > h {
		orientation = "L"
	}
	pdf.AddPageFormat(orientation, fpdf.SizeType{Wd: w, Ht: h})

	opts := fpdf.ImageOptions{ImageType: imgType}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(src))
	pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
	return nil
}

func bmpToPNG(src []byte) ([]byte, error) {
	img, err := bmp.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decode bmp: %v", ErrBadInput, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
