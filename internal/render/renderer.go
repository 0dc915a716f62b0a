// Package render turns an audit report and its customer into a branded,
// paginated PDF document.
package render

import (
	"bytes"
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haral/audit-reports/internal/imaging"
	"github.com/haral/audit-reports/internal/metrics"
	"github.com/haral/audit-reports/internal/model"
)

// Resolver turns a stored file reference into a readable local path.
type Resolver interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// Brand is the issuer identity printed in every header and footer.
type Brand struct {
	Name     string
	Tagline  string
	Claim    string
	Address  string
	Contact  string
	LogoPath string // local file, optional
}

// Options configures a Renderer.
type Options struct {
	Brand      Brand
	MaxImagePx int
	Now        func() time.Time
}

// Renderer produces report documents. It holds no per-render state and is
// safe for concurrent use.
type Renderer struct {
	engine     *metrics.Engine
	files      Resolver
	brand      Brand
	maxImagePx int
	now        func() time.Time
	compress   bool
}

// New creates a Renderer. files may be nil, in which case customer logos
// and report images fall back to text.
func New(engine *metrics.Engine, files Resolver, opts Options) *Renderer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Renderer{
		engine:     engine,
		files:      files,
		brand:      opts.Brand,
		maxImagePx: opts.MaxImagePx,
		now:        now,
		compress:   true,
	}
}

// Bundle is everything a document is built from.
type Bundle struct {
	Report   *model.Report // with Alternatives and Images loaded
	Customer *model.Customer
}

// Render builds the document for b. Missing optional fields, logos and
// images degrade to placeholder text; any other failure aborts the render
// and no partial output is returned.
func (r *Renderer) Render(ctx context.Context, b Bundle) ([]byte, error) {
	if b.Report == nil || b.Customer == nil {
		return nil, eris.New("render: report and customer are required")
	}
	log := zap.L().With(zap.String("report_id", b.Report.ID), zap.String("audit_number", b.Report.AuditNumber))
	at := r.now()

	a := r.loadAssets(ctx, b, log)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "render: cancelled")
	}

	v := newView(r.engine, b.Report, b.Customer)
	chapters := plan(v)

	// The first pass only records where chapters start so the table of
	// contents in the second pass can print page numbers.
	first, err := r.layout(v, a, chapters, nil, at)
	if err != nil {
		log.Error("render: layout failed", zap.Error(err))
		return nil, err
	}
	final, err := r.layout(v, a, chapters, first.chapterPages, at)
	if err != nil {
		log.Error("render: layout failed", zap.Error(err))
		return nil, err
	}

	var buf bytes.Buffer
	if err := final.pdf.Output(&buf); err != nil {
		log.Error("render: write pdf failed", zap.Error(err))
		return nil, eris.Wrap(err, "render: write pdf")
	}
	log.Debug("render: document built", zap.Int("pages", final.pdf.PageCount()), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (r *Renderer) layout(v *view, a *assets, chapters []chapter, pages map[string]int, at time.Time) (*document, error) {
	d := newDocument(documentMeta{
		title:    orDefault(v.report.Title, model.DefaultReportTitle) + " " + v.report.AuditNumber,
		author:   v.report.Author,
		at:       at,
		compress: r.compress,
	}, r.brand, v.customer.CompanyName, a)

	titlePage(d, v, at)
	tocPage(d, chapters, pages)
	for i, ch := range chapters {
		startChapter(d, i+1, ch.title)
		ch.build(d, v, a, i+1)
	}

	if err := d.pdf.Error(); err != nil {
		return nil, eris.Wrap(err, "render: layout")
	}
	return d, nil
}

// assets are the images a document embeds, prepared once per render and
// shared by both layout passes. Nil entries fall back to text.
type assets struct {
	brandLogo    *imaging.Prepared
	customerLogo *imaging.Prepared
	diagram      []byte
	images       []*imaging.Prepared // parallel to Report.Images
}

func (r *Renderer) loadAssets(ctx context.Context, b Bundle, log *zap.Logger) *assets {
	a := &assets{}

	if r.brand.LogoPath != "" {
		p, err := imaging.Load(r.brand.LogoPath, r.maxImagePx)
		if err != nil {
			log.Warn("render: brand logo unavailable", zap.String("path", r.brand.LogoPath), zap.Error(err))
		}
		a.brandLogo = p
	}

	if b.Customer.LogoRef != "" {
		a.customerLogo = r.loadRef(ctx, b.Customer.LogoRef, log)
	}

	in := b.Report.Inputs
	diagram, err := imaging.PalletDiagram(imaging.DiagramInput{
		Bands: []imaging.Band{
			{Label: "Oben", Windings: in.WindingsTop},
			{Label: "Mitte", Windings: in.WindingsMiddle},
			{Label: "Unten", Windings: in.WindingsBottom},
		},
		Prestretch: in.PrestretchActual,
	})
	if err != nil {
		log.Warn("render: pallet diagram unavailable", zap.Error(err))
	}
	a.diagram = diagram

	a.images = make([]*imaging.Prepared, len(b.Report.Images))
	for i, img := range b.Report.Images {
		if ctx.Err() != nil {
			break
		}
		a.images[i] = r.loadRef(ctx, img.FileRef, log)
	}
	return a
}

func (r *Renderer) loadRef(ctx context.Context, ref string, log *zap.Logger) *imaging.Prepared {
	if r.files == nil {
		return nil
	}
	path, err := r.files.Resolve(ctx, ref)
	if err != nil {
		log.Warn("render: file unavailable", zap.String("path", ref), zap.Error(err))
		return nil
	}
	p, err := imaging.Load(path, r.maxImagePx)
	if err != nil {
		log.Warn("render: image unreadable", zap.String("path", ref), zap.Error(err))
		return nil
	}
	return p
}
