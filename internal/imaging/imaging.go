// Package imaging prepares uploaded pictures for embedding in PDF documents
// and draws the pallet wrapping diagram.
package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rotisserie/eris"
)

// Image formats understood by the PDF writer.
const (
	FormatPNG = "PNG"
	FormatJPG = "JPG"
)

// Prepared is an image re-encoded into a format the PDF writer embeds.
type Prepared struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Load decodes the file at path, scales it down so neither side exceeds
// maxPx (0 disables scaling) and re-encodes it. Opaque images become JPEG,
// images with transparency PNG.
func Load(path string, maxPx int) (*Prepared, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "imaging: read %s", path)
	}
	return Decode(raw, maxPx)
}

// Decode is Load for in-memory data.
func Decode(raw []byte, maxPx int) (*Prepared, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "imaging: decode")
	}

	opaque := isOpaque(img)
	img = Fit(img, maxPx)
	b := img.Bounds()
	out := &Prepared{Width: b.Dx(), Height: b.Dy()}

	var buf bytes.Buffer
	if opaque {
		out.Format = FormatJPG
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	} else {
		// 8-bit NRGBA keeps 16-bit sources embeddable.
		flat := image.NewNRGBA(b)
		draw.Draw(flat, b, img, b.Min, draw.Src)
		out.Format = FormatPNG
		err = png.Encode(&buf, flat)
	}
	if err != nil {
		return nil, eris.Wrap(err, "imaging: encode")
	}
	out.Data = buf.Bytes()
	return out, nil
}

// Fit scales img down, keeping its aspect ratio, so that its longer side
// is at most maxPx. Smaller images are returned unchanged.
func Fit(img image.Image, maxPx int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxPx <= 0 || (w <= maxPx && h <= maxPx) {
		return img
	}

	nw, nh := maxPx, h*maxPx/w
	if h > w {
		nw, nh = w*maxPx/h, maxPx
	}
	nw, nh = max(nw, 1), max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
