package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/shopscout/browser"
	"github.com/use-agent/shopscout/models"
	"github.com/use-agent/shopscout/sources"
)

// Extract snapshots the rendered DOM once and maps it to product records.
func Extract(ctx context.Context, page browser.Page, spec *sources.Spec) ([]models.ProductRecord, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to read rendered page", err)
	}
	return ExtractHTML(raw, spec)
}

// ExtractHTML maps every container node in rawHTML to a ProductRecord, in
// document order. Fields are evaluated independently: a missing field gets
// its sentinel and never drops the record. Records without a name are
// dropped, and at most spec.Cap records are returned.
func ExtractHTML(rawHTML string, spec *sources.Spec) ([]models.ProductRecord, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse rendered page", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	container, err := spec.Matcher(spec.Container)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "invalid container selector", err)
	}

	e := extractor{spec: spec}
	products := make([]models.ProductRecord, 0, spec.Cap)
	doc.FindMatcher(container).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		rec, ok := e.record(card)
		if ok {
			products = append(products, rec)
		}
		return len(products) < spec.Cap && e.err == nil
	})
	if e.err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to evaluate field rule", e.err)
	}
	return products, nil
}

type extractor struct {
	spec *sources.Spec
	err  error
}

func (e *extractor) record(card *goquery.Selection) (models.ProductRecord, bool) {
	rec := models.NewProductRecord()
	for name, rule := range e.spec.Fields {
		value, found := e.value(card, rule)
		if !found {
			value = rule.Fallback()
		}
		rec.Set(name, value)
	}
	if strings.TrimSpace(rec.Name) == "" || rec.Name == models.NotAvailable {
		return rec, false
	}
	return rec, true
}

// value evaluates one rule against a card. found is false when the rule
// produced nothing, in which case the caller substitutes the sentinel.
func (e *extractor) value(card *goquery.Selection, rule sources.FieldRule) (string, bool) {
	if len(rule.Parts) > 0 {
		var b strings.Builder
		for _, part := range rule.Parts {
			if v, ok := e.value(card, part); ok {
				b.WriteString(v)
			}
		}
		return b.String(), b.Len() > 0
	}

	m, err := e.spec.Matcher(rule.Selector)
	if err != nil {
		e.err = err
		return "", false
	}
	node := card.FindMatcher(m).First()
	if node.Length() == 0 {
		return "", false
	}

	var v string
	if rule.Attr != "" {
		v, _ = node.Attr(rule.Attr)
	} else {
		v = node.Text()
	}
	v = collapseSpace(v)
	if v == "" {
		return "", false
	}
	if rule.URL {
		v = e.spec.Resolve(v)
	}
	return v + rule.Suffix, true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
