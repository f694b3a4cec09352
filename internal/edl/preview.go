package edl

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"talok/internal/domain"
)

var (
	notesPolicyOnce sync.Once
	notesPolicy     *bluemonday.Policy
)

func notesSanitizer() *bluemonday.Policy {
	notesPolicyOnce.Do(func() {
		p := bluemonday.StrictPolicy()
		p.AllowElements("b", "strong", "i", "em", "u", "br", "p", "ul", "ol", "li")
		notesPolicy = p
	})
	return notesPolicy
}

// SanitizeNotes keeps basic formatting tags of free-text notes and drops everything else.
func SanitizeNotes(raw string) template.HTML {
	return template.HTML(strings.TrimSpace(notesSanitizer().Sanitize(raw)))
}

// Hash is the SHA-256 of the canonical JSON of the inspection content.
// Bookkeeping timestamps are excluded so saving an unchanged report does not
// invalidate its preview.
func Hash(in domain.Inspection) (string, error) {
	in.CreatedAt, in.UpdatedAt = time.Time{}, time.Time{}
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("edl: hash: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

var kindLabels = map[domain.InspectionKind]string{
	domain.InspectionEntry: "État des lieux d'entrée",
	domain.InspectionExit:  "État des lieux de sortie",
}

var conditionLabels = map[domain.Condition]string{
	domain.ConditionNew:  "Neuf",
	domain.ConditionGood: "Bon état",
	domain.ConditionWorn: "État d'usage",
	domain.ConditionBad:  "Mauvais état",
}

var meterLabels = map[domain.MeterKind]string{
	domain.MeterElectricity: "Électricité",
	domain.MeterGas:         "Gaz",
	domain.MeterWater:       "Eau",
}

var previewTmpl = template.Must(template.New("edl").Funcs(template.FuncMap{
	"date":      func(t time.Time) string { return t.Format("02/01/2006") },
	"kind":      func(k domain.InspectionKind) string { return kindLabels[k] },
	"condition": func(c domain.Condition) string { return conditionLabels[c] },
	"meter":     func(k domain.MeterKind) string { return meterLabels[k] },
	"notes":     SanitizeNotes,
	"num":       func(f float64) string { return strings.Replace(fmt.Sprintf("%g", f), ".", ",", 1) },
}).Parse(`<!DOCTYPE html>
<html lang="fr"><head><meta charset="utf-8"><title>{{kind .In.Kind}}</title>
<style>body{font-family:sans-serif;font-size:12px}table{border-collapse:collapse;width:100%}td,th{border:1px solid #999;padding:4px}.warn{color:#b00}</style>
</head><body>
<h1>{{kind .In.Kind}}</h1>
<p>Date : {{date .In.Date}} &middot; Clés remises : {{.In.KeysCount}}</p>
{{- range .In.Rooms}}
<h2>{{.Name}}</h2>
<table><tr><th>Élément</th><th>État</th><th>Observations</th></tr>
{{- range .Items}}<tr><td>{{.Name}}</td><td>{{condition .Condition}}</td><td>{{notes .Notes}}</td></tr>{{end}}
</table>
{{- end}}
{{- if .In.Meters}}
<h2>Relevés de compteurs</h2>
<table><tr><th>Compteur</th><th>N° de série</th><th>Index</th></tr>
{{- range .In.Meters}}<tr><td>{{meter .Kind}}</td><td>{{.Serial}}</td><td>{{num .Value}} {{.Unit}}</td></tr>{{end}}
</table>
{{- end}}
{{- if .In.Furniture}}
<h2>Inventaire du mobilier</h2>
<table><tr><th>Équipement</th><th>Présent</th><th>Quantité</th><th>État</th></tr>
{{- range .In.Furniture}}<tr><td>{{.Label}}{{if .IsMandatory}} *{{end}}</td><td>{{if .Present}}Oui{{else}}Non{{end}}</td><td>{{.Quantity}}</td><td>{{condition .Condition}}</td></tr>{{end}}
</table>
{{- range .Warnings}}<p class="warn">{{.Message}}</p>{{end}}
{{- end}}
{{- if .In.GeneralNotes}}<h2>Observations générales</h2><div>{{notes .In.GeneralNotes}}</div>{{end}}
<h2>Signatures</h2>
{{- if .In.Signatures}}<ul>{{range .In.Signatures}}<li>{{.Role}} : signé le {{date .SignedAt}}</li>{{end}}</ul>{{else}}<p>Non signé</p>{{end}}
</body></html>
`))

// Render produces the print-ready HTML of an inspection.
func Render(in domain.Inspection) ([]byte, error) {
	var data struct {
		In       domain.Inspection
		Warnings []Warning
	}
	data.In = in
	if len(in.Furniture) > 0 {
		data.Warnings = CheckCompliance(in.Furniture)
	}
	var buf bytes.Buffer
	if err := previewTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("edl: render: %w", err)
	}
	return buf.Bytes(), nil
}

// Preview is a rendered inspection with the hash of the content it was built from.
type Preview struct {
	Hash     string
	HTML     []byte
	Rendered bool // false when served from the previous render
}

// Previewer keeps the last render per inspection and only re-renders when
// the content hash changes. Requests through Request are debounced.
type Previewer struct {
	delay     time.Duration
	observe   func(result string)
	maxCached int

	mu      sync.Mutex
	seq     uint64
	last    map[uuid.UUID]cachedPreview
	pending map[uuid.UUID]*time.Timer
}

type cachedPreview struct {
	Preview
	seq uint64
}

type PreviewOption func(*Previewer)

// WithObserver receives "rendered" or "unchanged" for every preview.
func WithObserver(fn func(result string)) PreviewOption {
	return func(p *Previewer) { p.observe = fn }
}

// WithMaxCached bounds the number of renders kept; the oldest goes first.
func WithMaxCached(n int) PreviewOption {
	return func(p *Previewer) { p.maxCached = n }
}

func NewPreviewer(delay time.Duration, opts ...PreviewOption) *Previewer {
	p := &Previewer{
		delay:     delay,
		maxCached: 1024,
		last:      map[uuid.UUID]cachedPreview{},
		pending: map[uuid.UUID]*time.Timer{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Preview returns the HTML for the inspection, reusing the previous render
// when nothing changed.
func (p *Previewer) Preview(ctx context.Context, in domain.Inspection) (Preview, error) {
	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}
	h, err := Hash(in)
	if err != nil {
		return Preview{}, err
	}
	p.mu.Lock()
	prev, ok := p.last[in.ID]
	p.mu.Unlock()
	if ok && prev.Hash == h {
		p.record("unchanged")
		out := prev.Preview
		out.Rendered = false
		return out, nil
	}
	html, err := Render(in)
	if err != nil {
		return Preview{}, err
	}
	out := Preview{Hash: h, HTML: html, Rendered: true}
	p.mu.Lock()
	p.store(in.ID, out)
	p.mu.Unlock()
	p.record("rendered")
	return out, nil
}

// Request schedules a background render; a newer request for the same
// inspection replaces the pending one.
func (p *Previewer) Request(in domain.Inspection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t := p.pending[in.ID]; t != nil {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		// a timer that fired while being replaced or stopped must not
		// drop its successor
		if p.pending[in.ID] != t {
			p.mu.Unlock()
			return
		}
		delete(p.pending, in.ID)
		p.mu.Unlock()
		if _, err := p.Preview(context.Background(), in); err != nil {
			log.Warn().Err(err).Str("inspection", in.ID.String()).Msg("edl preview render failed")
		}
	})
	p.pending[in.ID] = t
}

// Cached returns the last render of an inspection, if any.
func (p *Previewer) Cached(id uuid.UUID) (Preview, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.last[id]
	return pr.Preview, ok
}

// Forget drops the pending request and the cached render of an inspection.
func (p *Previewer) Forget(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t := p.pending[id]; t != nil {
		t.Stop()
		delete(p.pending, id)
	}
	delete(p.last, id)
}

func (p *Previewer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range p.pending {
		t.Stop()
		delete(p.pending, id)
	}
	clear(p.last)
}

// store keeps out as the last render of id. Callers hold p.mu.
func (p *Previewer) store(id uuid.UUID, out Preview) {
	if _, ok := p.last[id]; !ok && p.maxCached > 0 && len(p.last) >= p.maxCached {
		var oldest uuid.UUID
		first := true
		for k, v := range p.last {
			if first || v.seq < p.last[oldest].seq {
				oldest, first = k, false
			}
		}
		delete(p.last, oldest)
	}
	p.seq++
	p.last[id] = cachedPreview{Preview: out, seq: p.seq}
}

func (p *Previewer) record(result string) {
	if p.observe != nil {
		p.observe(result)
	}
}
