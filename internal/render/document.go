package render

import (
	"bytes"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/haral/audit-reports/internal/imaging"
)

const (
	marginLeft   = 20.0
	marginRight  = 20.0
	marginTop    = 35.0
	marginBottom = 30.0
	headerTop    = 10.0
	headerHeight = 10.0
)

// Registered image names.
const (
	imgBrand    = "brand"
	imgCustomer = "customer"
	imgDiagram  = "diagram"
)

// document wraps one fpdf instance for a single layout pass.
type document struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	width float64 // printable width in mm

	// chapterPages records the first page of every chapter title.
	chapterPages map[string]int
	registered   map[string]bool
}

type documentMeta struct {
	title    string
	author   string
	at       time.Time
	compress bool
}

func newDocument(meta documentMeta, brand Brand, customerLabel string, a *assets) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetCompression(meta.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(meta.at)
	pdf.SetModificationDate(meta.at)
	pdf.SetTitle(meta.title, true)
	pdf.SetAuthor(meta.author, true)
	pdf.SetCreator(brand.Name, true)

	pageW, _ := pdf.GetPageSize()
	d := &document{
		pdf:          pdf,
		tr:           pdf.UnicodeTranslatorFromDescriptor(""),
		width:        pageW - marginLeft - marginRight,
		chapterPages: make(map[string]int),
		registered:   make(map[string]bool),
	}

	d.register(imgBrand, a.brandLogo)
	d.register(imgCustomer, a.customerLogo)
	if a.diagram != nil {
		d.register(imgDiagram, &imaging.Prepared{Data: a.diagram, Format: imaging.FormatPNG})
	}
	for i, img := range a.images {
		d.register(imageName(i), img)
	}

	pdf.SetHeaderFuncMode(func() { d.header(brand, customerLabel) }, true)
	pdf.SetFooterFunc(func() { d.footer(brand) })
	return d
}

func imageName(i int) string { return "image-" + integer(i) }

func (d *document) register(name string, p *imaging.Prepared) {
	if p == nil {
		return
	}
	d.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: p.Format}, bytes.NewReader(p.Data))
	d.registered[name] = d.pdf.Ok()
}

func (d *document) has(name string) bool { return d.registered[name] }

// imageSize returns the size of a registered image scaled to fit in maxW x maxH.
func (d *document) imageSize(name string, maxW, maxH float64) (float64, float64) {
	info := d.pdf.GetImageInfo(name)
	w, h := info.Width(), info.Height()
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := min(maxW/w, maxH/h)
	return w * scale, h * scale
}

// Page decoration

func (d *document) header(brand Brand, customerLabel string) {
	pdf := d.pdf
	right := marginLeft + d.width

	d.fill(colorGray)
	pdf.Rect(marginLeft, headerTop, d.width, headerHeight, "F")
	d.fill(colorYellow)
	pdf.Rect(marginLeft, headerTop, headerHeight, headerHeight, "F")

	if d.has(imgBrand) {
		w, h := d.imageSize(imgBrand, 40, headerHeight-2)
		pdf.ImageOptions(imgBrand, marginLeft+headerHeight+2, headerTop+(headerHeight-h)/2, w, h, false, fpdf.ImageOptions{}, 0, "")
	} else {
		d.use(styleBrand)
		pdf.Text(marginLeft+headerHeight+3, headerTop+6.5, d.tr(brand.Name))
		d.use(styleBrandSmall)
		pdf.Text(marginLeft+headerHeight+25, headerTop+4.5, d.tr(brand.Tagline))
		pdf.Text(marginLeft+headerHeight+25, headerTop+7.8, d.tr(brand.Claim))
	}

	if d.has(imgCustomer) {
		w, h := d.imageSize(imgCustomer, 40, headerHeight-2)
		pdf.ImageOptions(imgCustomer, right-w-2, headerTop+(headerHeight-h)/2, w, h, false, fpdf.ImageOptions{}, 0, "")
	} else if customerLabel != "" {
		d.use(styleBrandSmall)
		label := d.tr(customerLabel)
		pdf.Text(right-2-pdf.GetStringWidth(label), headerTop+6, label)
	}
}

func (d *document) footer(brand Brand) {
	pdf := d.pdf
	pdf.SetY(-22)
	d.use(styleFooter)
	pdf.CellFormat(0, 4, d.tr(brand.Address), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, d.tr(brand.Contact), "", 1, "C", false, 0, "")
	d.use(stylePageNumber)
	pdf.CellFormat(0, 5, integer(pdf.PageNo()), "", 0, "R", false, 0, "")
}

// Primitives

func (d *document) use(s style) {
	d.pdf.SetFont(s.family, s.emphasis, s.size)
	d.pdf.SetTextColor(s.color.r, s.color.g, s.color.b)
}

func (d *document) fill(c rgb) { d.pdf.SetFillColor(c.r, c.g, c.b) }

func (d *document) draw(c rgb) { d.pdf.SetDrawColor(c.r, c.g, c.b) }

func (d *document) text(s style, txt string) {
	d.use(s)
	d.pdf.MultiCell(0, s.lineHeight, d.tr(txt), "", s.align, false)
}

func (d *document) paragraph(txt string) {
	if txt == "" {
		return
	}
	d.text(styleBody, txt)
	d.space(3)
}

func (d *document) heading(txt string) {
	d.text(styleHeading, txt)
	d.space(3)
}

func (d *document) subheading(txt string) {
	d.text(styleSubheading, txt)
	d.space(2)
}

func (d *document) space(h float64) { d.pdf.Ln(h) }

// ensure starts a new page when less than h mm remain above the footer.
func (d *document) ensure(h float64) {
	_, pageH := d.pdf.GetPageSize()
	if d.pdf.GetY()+h > pageH-marginBottom {
		d.pdf.AddPage()
	}
}

func (d *document) rule() {
	y := d.pdf.GetY()
	d.draw(colorGray)
	d.pdf.SetLineWidth(0.7)
	d.pdf.Line(marginLeft, y, marginLeft+d.width, y)
	d.pdf.Line(marginLeft, y+1.5, marginLeft+d.width, y+1.5)
	d.pdf.SetLineWidth(0.2)
	d.space(4)
}

// Tables

type cell struct {
	text  string
	color *rgb
}

func plain(s string) cell { return cell{text: s} }

func red(s string) cell {
	c := colorRed
	return cell{text: s, color: &c}
}

type table struct {
	widths []float64
	header []string
	rows   [][]cell
	// labelColumn renders the first column left-aligned in bold.
	labelColumn bool
}

func (d *document) table(t table) {
	pdf := d.pdf
	h := styleTableCell.lineHeight
	d.ensure(h * float64(min(len(t.rows)+1, 4)))

	d.draw(colorGray)
	pdf.SetLineWidth(0.3)
	x := pdf.GetX()

	if len(t.header) > 0 {
		d.use(styleTableHead)
		d.fill(colorGray)
		for i, head := range t.header {
			pdf.CellFormat(t.widths[i], h, d.tr(head), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(h)
	}

	for _, row := range t.rows {
		pdf.SetX(x)
		for i, c := range row {
			st, align := styleTableCell, "C"
			if t.labelColumn && i == 0 {
				st, align = styleTableLabel, "L"
			}
			d.use(st)
			if c.color != nil {
				pdf.SetTextColor(c.color.r, c.color.g, c.color.b)
			}
			pdf.CellFormat(t.widths[i], h, d.tr(c.text), "1", 0, align, false, 0, "")
		}
		pdf.Ln(h)
	}
	pdf.SetLineWidth(0.2)
	d.space(4)
}

// image places a registered image centered, scaled into maxW x maxH, and
// moves below it.
func (d *document) image(name string, maxW, maxH float64) {
	w, h := d.imageSize(name, maxW, maxH)
	d.ensure(h + 2)
	x := marginLeft + (d.width-w)/2
	d.pdf.ImageOptions(name, x, d.pdf.GetY(), w, h, false, fpdf.ImageOptions{}, 0, "")
	d.pdf.SetY(d.pdf.GetY() + h + 2)
}

// processStrip draws the six consulting steps as connected circles.
func (d *document) processStrip(steps []string) {
	pdf := d.pdf
	d.ensure(22)
	y := pdf.GetY() + 7
	step := d.width / float64(len(steps))

	d.draw(colorGray)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft+step/2, y, marginLeft+d.width-step/2, y)
	for i, label := range steps {
		cx := marginLeft + step*float64(i) + step/2
		d.fill(colorLightGray)
		if i == 0 {
			d.fill(colorYellow)
		}
		pdf.Circle(cx, y, 5, "FD")
		d.use(styleStep)
		pdf.SetXY(cx-step/2, y+7)
		pdf.CellFormat(step, 3, d.tr(label), "", 0, "C", false, 0, "")
	}
	pdf.SetLineWidth(0.2)
	pdf.SetXY(marginLeft, y+14)
}
