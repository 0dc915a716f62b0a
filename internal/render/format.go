package render

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const micro = "µm"

var german = message.NewPrinter(language.German)

// decimal formats v with German grouping and the given number of places
// (0, 1 or 2).
func decimal(v float64, places int) string {
	switch places {
	case 0:
		return german.Sprintf("%.0f", v)
	case 2:
		return german.Sprintf("%.2f", v)
	default:
		return german.Sprintf("%.1f", v)
	}
}

// number prints v with up to three decimals and no trailing zeros.
func number(v float64) string {
	s := german.Sprintf("%.3f", v)
	if strings.Contains(s, ",") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ",")
	}
	return s
}

func integer(n int) string { return german.Sprintf("%d", n) }

func percent(v float64) string { return decimal(v, 1) + " %" }

func signedPercent(v float64) string {
	if v > 0 {
		return "+" + percent(v)
	}
	return percent(v)
}

func money(v float64) string { return decimal(v, 2) + " €" }

func kilograms(v float64) string { return decimal(v, 0) + " kg" }

func date(t time.Time) string { return t.Format("02.01.2006") }

// Optional-value variants return "-" for nil.

func optNumber(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return strings.TrimSpace(number(*v) + " " + unit)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return integer(*v)
}

func optPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return percent(*v)
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

var umlauts = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
)

// safeName reduces s to ASCII letters, digits and dashes, replacing every
// other run of characters with a single underscore.
func safeName(s string) string {
	s = umlauts.Replace(s)
	s, _, _ = transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)

	var b strings.Builder
	gap := false
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
			b.WriteRune(r)
			gap = false
			continue
		}
		if !gap && b.Len() > 0 {
			b.WriteByte('_')
			gap = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

func filename(parts ...string) string {
	name := "Pruefbericht"
	for _, p := range parts {
		if p = safeName(p); p != "" {
			name += "_" + p
		}
	}
	return name + ".pdf"
}

// AttachmentName is the download filename for a report, e.g.
// "Pruefbericht_IGM_Fenster_GmbH_12345678.pdf".
func AttachmentName(company, auditNumber string) string {
	return filename(company, auditNumber)
}

// DocumentName is the on-disk filename of a generated document. It includes
// the report id and generation time so concurrent renders never collide.
func DocumentName(company, auditNumber, reportID string, at time.Time) string {
	return filename(company, auditNumber, reportID, at.UTC().Format("20060102T150405.000"))
}
