package imaging

import (
	"bytes"
	"fmt"

	"github.com/fogleman/gg"
	"github.com/rotisserie/eris"
)

// Band is one wrapping zone of the test pallet.
type Band struct {
	Label    string
	Windings *int
}

// DiagramInput describes what the pallet diagram shows.
type DiagramInput struct {
	Bands      []Band // top to bottom
	Prestretch *float64
}

const (
	diagramWidth  = 600
	diagramHeight = 420
)

// PalletDiagram draws a side view of the wrapped test pallet: a pallet base,
// the load split into bands, and per band as many film strokes as windings
// (capped for legibility) next to a text label. The result is a PNG.
func PalletDiagram(in DiagramInput) ([]byte, error) {
	dc := gg.NewContext(diagramWidth, diagramHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	const (
		left   = 60.0
		right  = 360.0
		top    = 40.0
		bottom = 340.0
	)

	// Pallet base: deck board and three blocks.
	dc.SetRGB(0.55, 0.4, 0.25)
	dc.DrawRectangle(left-10, bottom, right-left+20, 14)
	dc.Fill()
	for _, x := range []float64{left - 10, (left+right)/2 - 20, right - 30} {
		dc.DrawRectangle(x, bottom+14, 40, 22)
		dc.Fill()
	}

	// Load.
	dc.SetRGB(0.9, 0.9, 0.9)
	dc.DrawRectangle(left, top, right-left, bottom-top)
	dc.Fill()
	dc.SetRGB(0.4, 0.4, 0.4)
	dc.SetLineWidth(2)
	dc.DrawRectangle(left, top, right-left, bottom-top)
	dc.Stroke()

	n := len(in.Bands)
	if n == 0 {
		return encode(dc)
	}
	bandHeight := (bottom - top) / float64(n)

	for i, band := range in.Bands {
		y0 := top + float64(i)*bandHeight

		if i > 0 {
			dc.SetRGB(0.6, 0.6, 0.6)
			dc.SetDash(6, 4)
			dc.DrawLine(left, y0, right, y0)
			dc.Stroke()
			dc.SetDash()
		}

		windings := 0
		if band.Windings != nil {
			windings = *band.Windings
		}
		strokes := min(windings, 12)
		if strokes > 0 {
			dc.SetRGBA(1, 0.8, 0, 0.85)
			dc.SetLineWidth(3)
			step := bandHeight / float64(strokes+1)
			for s := 1; s <= strokes; s++ {
				y := y0 + float64(s)*step
				dc.DrawLine(left-6, y+4, right+6, y-4)
				dc.Stroke()
			}
		}

		label := band.Label + ": -"
		if band.Windings != nil {
			label = fmt.Sprintf("%s: %d Wicklungen", band.Label, windings)
		}
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(label, right+30, y0+bandHeight/2, 0, 0.5)
	}

	if in.Prestretch != nil {
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(fmt.Sprintf("Vordehnung: %.0f %%", *in.Prestretch), left, bottom+56, 0, 0.5)
	}

	return encode(dc)
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, eris.Wrap(err, "imaging: encode diagram")
	}
	return buf.Bytes(), nil
}
