package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/tcg-price-scraper/internal/models"
)

type TCGParser struct {
	recentSaleLabel    *regexp.Regexp
	pricePointSelector string
	saleSelectors      []string
	marketSelectors    []string
	titleSelectors     []string
	ancestorDepth      int
}

func NewTCGParser() *TCGParser {
	return &TCGParser{
		recentSaleLabel:    regexp.MustCompile(`(?i)(Most\s+Recent\s+Sale|Last\s+Sold)`),
		pricePointSelector: ".price-points__upper__price",
		saleSelectors: []string{
			".price-points_upper_price",
			".most-recent-sale",
			".recent-sale-price",
			`[data-testid="most-recent-sale"]`,
			".price-points .upper .price",
		},
		marketSelectors: []string{
			".market-price",
			".current-price",
			".price-value",
			`[data-testid="price"]`,
			".product-price",
			".marketplace-price",
		},
		titleSelectors: []string{
			"h1.product-details__name",
			".product-details__name",
			`h1[data-testid="product-title"]`,
			".product-title",
			"h1",
		},
		ancestorDepth: 4,
	}
}

func newDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ExtractTables returns every table in html. Headers come from thead, else
// from the first row. Rows repeating the header are skipped. A row whose cell
// count differs from the header count is kept as a positional list.
func (p *TCGParser) ExtractTables(html string) ([]models.Table, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	tables := []models.Table{}
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		tables = append(tables, p.parseTable(t))
	})

	return tables, nil
}

func cellTexts(tr *goquery.Selection) []string {
	cells := []string{}
	tr.ChildrenFiltered("th, td").Each(func(_ int, c *goquery.Selection) {
		cells = append(cells, spacedText(c))
	})
	return cells
}

func (p *TCGParser) parseTable(t *goquery.Selection) models.Table {
	headers := []string{}

	if thead := t.ChildrenFiltered("thead").First(); thead.Length() > 0 {
		thead.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			if text := spacedText(c); text != "" {
				headers = append(headers, text)
			}
		})
	} else if first := t.Find("tr").First(); first.Length() > 0 {
		headers = cellTexts(first)
	}

	bodies := t.ChildrenFiltered("tbody")
	if bodies.Length() == 0 {
		bodies = t
	}

	rows := []any{}
	bodies.Each(func(_ int, body *goquery.Selection) {
		body.ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := cellTexts(tr)
			if len(headers) > 0 && equalStrings(cells, headers) {
				return
			}
			if len(headers) > 0 && len(headers) == len(cells) {
				row := make(map[string]string, len(cells))
				for i, cell := range cells {
					key := headers[i]
					if key == "" {
						key = fmt.Sprintf("col_%d", i)
					}
					row[key] = cell
				}
				rows = append(rows, row)
				return
			}
			rows = append(rows, cells)
		})
	})

	return models.Table{Headers: headers, Rows: rows}
}

// ExtractKeyValues collects label/value pairs from definition lists and,
// independently, from "Label: Value" text lines. Both passes may report the
// same label.
func (p *TCGParser) ExtractKeyValues(html string) ([]models.Stat, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	stats := []models.Stat{}

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		var dts, dds []string
		dl.Find("dt").Each(func(_ int, s *goquery.Selection) { dts = append(dts, spacedText(s)) })
		dl.Find("dd").Each(func(_ int, s *goquery.Selection) { dds = append(dds, spacedText(s)) })
		for i := 0; i < len(dts) && i < len(dds); i++ {
			if dts[i] != "" || dds[i] != "" {
				stats = append(stats, models.Stat{Label: dts[i], Value: dds[i]})
			}
		}
	})

	for _, line := range textLines(doc.Selection) {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label, value = strings.TrimSpace(label), strings.TrimSpace(value)
		if label != "" && value != "" {
			stats = append(stats, models.Stat{Label: label, Value: value})
		}
	}

	return stats, nil
}

// ExtractRecentSale finds the most recent sale price on a product page. It
// returns nil when the page has no price at all.
func (p *TCGParser) ExtractRecentSale(html string) (*float64, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	strategies := []struct {
		name string
		fn   func(doc *goquery.Document) (float64, bool)
	}{
		{"price points", p.recentSaleFromPricePoints},
		{"sale selectors", func(doc *goquery.Document) (float64, bool) {
			return firstPrice(doc, p.saleSelectors)
		}},
		{"sale label", p.recentSaleFromLabel},
		// the market price stands in when the page shows no sale at all
		{"market price", func(doc *goquery.Document) (float64, bool) {
			return firstPrice(doc, p.marketSelectors)
		}},
		{"first money token", func(doc *goquery.Document) (float64, bool) {
			return ParseMoney(strings.Join(textLines(doc.Selection), " "))
		}},
	}

	for _, s := range strategies {
		if v, ok := s.fn(doc); ok {
			return &v, nil
		}
	}

	return nil, nil
}

// the second price point is the most recent sale, the first is market price
func (p *TCGParser) recentSaleFromPricePoints(doc *goquery.Document) (float64, bool) {
	points := doc.Find(p.pricePointSelector)

	var el *goquery.Selection
	switch {
	case points.Length() >= 2:
		el = points.Eq(1)
	case points.Length() == 1:
		el = points.First()
	default:
		return 0, false
	}

	v, ok := ParseMoney(spacedText(el))
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// firstPrice returns the first positive amount found under selectors, tried in order.
func firstPrice(doc *goquery.Document, selectors []string) (float64, bool) {
	for _, sel := range selectors {
		var (
			found float64
			ok    bool
		)
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if v, match := ParseMoney(spacedText(el)); match && v > 0 {
				found, ok = v, true
				return false
			}
			return true
		})
		if ok {
			return found, true
		}
	}
	return 0, false
}

// ExtractTitle returns the product name shown on a product page, or "" when
// none of the title selectors match.
func (p *TCGParser) ExtractTitle(html string) (string, error) {
	doc, err := newDocument(html)
	if err != nil {
		return "", err
	}

	for _, sel := range p.titleSelectors {
		if title := collapseSpace(doc.Find(sel).First().Text()); title != "" {
			return title, nil
		}
	}
	return "", nil
}

func (p *TCGParser) recentSaleFromLabel(doc *goquery.Document) (float64, bool) {
	var (
		found float64
		ok    bool
	)

	walkText(doc.Selection, func(text string, parent *goquery.Selection) bool {
		if !p.recentSaleLabel.MatchString(text) {
			return true
		}
		el := parent
		for i := 0; i < p.ancestorDepth && el.Length() > 0; i++ {
			if v, match := ParseMoney(spacedText(el)); match {
				found, ok = v, true
				return false
			}
			el = el.Parent()
		}
		return true
	})

	return found, ok
}

// ParseSnapshot assembles the payload of a sales history dialog.
func (p *TCGParser) ParseSnapshot(title, html, text string) (*models.SnapshotPayload, error) {
	tables, err := p.ExtractTables(html)
	if err != nil {
		return nil, err
	}

	stats, err := p.ExtractKeyValues(html)
	if err != nil {
		return nil, err
	}

	return &models.SnapshotPayload{
		Title:  title,
		Tables: tables,
		Stats:  stats,
		Text:   strings.TrimSpace(text),
	}, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// walkText visits non-empty text nodes in document order together with their
// parent element. Returning false stops the walk.
func walkText(s *goquery.Selection, visit func(text string, parent *goquery.Selection) bool) bool {
	cont := true
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		switch goquery.NodeName(c) {
		case "script", "style", "noscript", "template":
			return true
		case "#text":
			if text := collapseSpace(c.Text()); text != "" {
				cont = visit(text, s)
			}
		default:
			cont = walkText(c, visit)
		}
		return cont
	})
	return cont
}

func textLines(s *goquery.Selection) []string {
	var lines []string
	walkText(s, func(text string, _ *goquery.Selection) bool {
		lines = append(lines, text)
		return true
	})
	return lines
}

func spacedText(s *goquery.Selection) string {
	return strings.Join(textLines(s), " ")
}
