package parser

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/maltedev/tcg-price-scraper/internal/models"
)

// RawListing is one listing row as read from the live DOM, before any
// normalization.
type RawListing struct {
	ID                string `json:"id"`
	Condition         string `json:"condition"`
	PriceText         string `json:"priceText"`
	ShippingText      string `json:"shippingText"`
	ShippingHasAnchor bool   `json:"shippingHasAnchor"`
	Seller            string `json:"seller"`
	SellerID          string `json:"sellerId"`
	QuantityText      string `json:"qtyText"`
	Info              string `json:"info"`
}

// NormalizeListing converts a raw row. Rows without a parsable price are
// rejected.
func NormalizeListing(raw RawListing) (models.ListingRecord, bool) {
	price, ok := ParseMoney(raw.PriceText)
	if !ok {
		return models.ListingRecord{}, false
	}

	// An anchor with no amount next to it links to the seller's shipping
	// terms; TCGplayer shows that for shipping included in the price.
	included := raw.ShippingHasAnchor && !moneyPattern.MatchString(raw.ShippingText)
	shipping := ParseShipping(raw.ShippingText)
	if included {
		shipping = 0
	}

	return models.ListingRecord{
		Condition:         collapseSpace(raw.Condition),
		Price:             price,
		ShippingPrice:     shipping,
		ShippingIncluded:  included,
		SellerName:        collapseSpace(raw.Seller),
		SellerID:          strings.TrimSpace(raw.SellerID),
		QuantityAvailable: FirstInt(raw.QuantityText),
		AdditionalInfo:    collapseSpace(raw.Info),
	}, true
}

func compositeKey(r models.ListingRecord) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%.2f|%.2f|%d|%s", r.SellerName, r.Condition, r.Price, r.ShippingPrice, r.QuantityAvailable, r.AdditionalInfo)
	return "c:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Deduper assigns dedup keys across one fetch. A repeated stable id is the
// same listing and is dropped. A repeated composite key is kept with a
// numeric suffix so heuristic collisions never lose listings.
type Deduper struct {
	seen map[string]int
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]int)}
}

// Add keys the record and reports whether it should be kept.
func (d *Deduper) Add(raw RawListing, rec *models.ListingRecord) bool {
	if id := strings.TrimSpace(raw.ID); id != "" {
		key := "id:" + id
		if d.seen[key] > 0 {
			return false
		}
		d.seen[key] = 1
		rec.Key = key
		return true
	}

	key := compositeKey(*rec)
	d.seen[key]++
	if n := d.seen[key]; n > 1 {
		key = fmt.Sprintf("%s#%d", key, n)
	}
	rec.Key = key
	return true
}

// NormalizeListings normalizes and deduplicates rows of a single page.
func NormalizeListings(raws []RawListing) []models.ListingRecord {
	return NormalizeInto(NewDeduper(), raws)
}

// NormalizeInto normalizes rows using a shared deduper, so keys stay unique
// across several pages of one fetch.
func NormalizeInto(d *Deduper, raws []RawListing) []models.ListingRecord {
	out := make([]models.ListingRecord, 0, len(raws))
	for _, raw := range raws {
		rec, ok := NormalizeListing(raw)
		if !ok {
			continue
		}
		if d.Add(raw, &rec) {
			out = append(out, rec)
		}
	}
	return out
}
