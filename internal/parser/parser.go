package parser

import (
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

type Parser interface {
	ExtractTables(html string) ([]models.Table, error)
	ExtractKeyValues(html string) ([]models.Stat, error)
	ExtractRecentSale(html string) (*float64, error)
	ExtractTitle(html string) (string, error)
	ParseSnapshot(title, html, text string) (*models.SnapshotPayload, error)
}
