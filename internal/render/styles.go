package render

type rgb struct{ r, g, b int }

var (
	colorYellow    = rgb{255, 204, 0}
	colorGray      = rgb{102, 102, 102}
	colorLightGray = rgb{230, 230, 230}
	colorText      = rgb{40, 40, 40}
	colorRed       = rgb{200, 0, 0}
	colorWhite     = rgb{255, 255, 255}
)

// style is a named text style. Values are fixed at package level and
// never modified.
type style struct {
	family     string
	emphasis   string // "", "B", "I"
	size       float64
	color      rgb
	lineHeight float64
	align      string // L, C, R, J
}

var (
	styleCompany    = style{"Helvetica", "B", 36, colorGray, 16, "C"}
	styleSubtitle   = style{"Helvetica", "", 18, colorGray, 9, "C"}
	styleTitle      = style{"Helvetica", "B", 22, colorGray, 11, "C"}
	styleHeading    = style{"Helvetica", "B", 14, colorGray, 8, "L"}
	styleSubheading = style{"Helvetica", "B", 12, colorGray, 7, "L"}
	styleBody       = style{"Helvetica", "", 10, colorText, 5, "J"}
	styleBodyCenter = style{"Helvetica", "", 10, colorText, 5, "C"}
	styleNote       = style{"Helvetica", "I", 8, colorGray, 4, "L"}
	styleCaption    = style{"Helvetica", "I", 9, colorGray, 5, "C"}
	styleTableHead  = style{"Helvetica", "B", 9, colorWhite, 7, "C"}
	styleTableCell  = style{"Helvetica", "", 9, colorText, 7, "C"}
	styleTableLabel = style{"Helvetica", "B", 9, colorText, 7, "L"}
	styleHighlight  = style{"Helvetica", "B", 16, colorGray, 12, "C"}
	styleFooter     = style{"Helvetica", "", 8, colorGray, 4, "C"}
	stylePageNumber = style{"Helvetica", "B", 10, colorGray, 4, "R"}
	styleBrand      = style{"Helvetica", "B", 14, colorWhite, 5, "L"}
	styleBrandSmall = style{"Helvetica", "", 7, colorWhite, 3, "L"}
	styleStep       = style{"Helvetica", "B", 6, colorGray, 3, "C"}
)
