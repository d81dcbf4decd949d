package scraper

import (
	"context"
	"fmt"

	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/parser"
)

// FetchLastSoldOnce reads the most recent sale price from a product page. A
// page without a recognizable price yields a nil price, not an error.
func (s *Scraper) FetchLastSoldOnce(ctx context.Context, url string) (*models.LastSoldResult, error) {
	res := &models.LastSoldResult{URL: url}

	meta, err := s.execute(ctx, "last_sold", func(r *run) error {
		if err := s.load(ctx, r, url); err != nil {
			return err
		}

		html, err := r.page.Content()
		if err != nil {
			return fmt.Errorf("failed to read page content: %w", err)
		}

		price, err := s.deps.Parser.ExtractRecentSale(html)
		if err != nil {
			return fmt.Errorf("failed to parse recent sale: %w", err)
		}
		res.MostRecentSale = price

		if res.Title, err = s.deps.Parser.ExtractTitle(html); err != nil {
			s.logger.Debug("no product title", "url", url, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}

// FetchSalesSnapshot opens the sales history dialog of a product page and
// returns its tables, stats and text.
func (s *Scraper) FetchSalesSnapshot(ctx context.Context, url string) (*models.SalesSnapshotResult, error) {
	res := &models.SalesSnapshotResult{URL: url}

	meta, err := s.execute(ctx, "sales_snapshot", func(r *run) error {
		if err := s.load(ctx, r, url); err != nil {
			return err
		}

		payload, err := s.openSnapshot(ctx, r.page)
		if err != nil {
			return err
		}

		res.Title = payload.Title
		res.Tables = payload.Tables
		res.Stats = payload.Stats
		res.Text = payload.Text
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}

// FetchActiveListings crawls up to MaxListingPages listing pages. Records are
// deduplicated across pages. When a later page cannot be reached the pages
// already read are kept and the failure is reported next to them.
func (s *Scraper) FetchActiveListings(ctx context.Context, productID string) (*models.ActiveListingsResult, error) {
	url := s.opts.ProductURL(productID)
	res := &models.ActiveListingsResult{ProductID: productID, URL: url, Listings: []models.ListingRecord{}}

	meta, err := s.execute(ctx, "active_listings", func(r *run) error {
		if err := s.load(ctx, r, url); err != nil {
			return err
		}

		raws, err := s.readListings(ctx, r.page)
		if err != nil {
			return err
		}

		dedup := parser.NewDeduper()
		collected := parser.NormalizeInto(dedup, raws)
		res.PagesScanned = 1

		// the pager can show only a window of page links, so it is read again
		// after every hop and the bound follows what it shows now
		cursor := s.deps.Traverser.Cursor(r.page)
		logger := s.logger.With("product_id", productID)

		for p := 2; p <= min(cursor.LastPage, s.opts.MaxListingPages); p++ {
			if _, err := s.deps.Traverser.NavigateToPage(ctx, r.page, url, p, cursor.LastPage); err != nil {
				res.Listings = collected
				return fmt.Errorf("failed to reach listings page %d: %w", p, err)
			}
			if err := probeAfterHop(r.page); err != nil {
				return err
			}

			raws, err := s.readListings(ctx, r.page)
			if err != nil {
				res.Listings = collected
				return fmt.Errorf("listings page %d: %w", p, err)
			}

			collected = append(collected, parser.NormalizeInto(dedup, raws)...)
			res.PagesScanned = p
			cursor = s.deps.Traverser.Cursor(r.page)
			logger.Debug("listings page read", "page", p, "rows", len(raws), "last_page", cursor.LastPage)
		}

		res.Listings = collected
		logger.Info("listings collected", "count", len(collected), "pages", res.PagesScanned)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if meta.Error == models.ErrBlockedOrChallenge {
		res.Listings = []models.ListingRecord{}
		res.PagesScanned = 0
	}
	res.Meta = meta
	return res, nil
}

// FetchPagesInProduct reports how many listing pages a product has.
func (s *Scraper) FetchPagesInProduct(ctx context.Context, productID string) (*models.PagesResult, error) {
	url := s.opts.ProductURL(productID)
	res := &models.PagesResult{ProductID: productID, URL: url}

	meta, err := s.execute(ctx, "pages_in_product", func(r *run) error {
		if err := s.load(ctx, r, url); err != nil {
			return err
		}
		if _, err := s.readListings(ctx, r.page); err != nil {
			return err
		}

		res.TotalPages = s.deps.Traverser.Cursor(r.page).LastPage
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}

// FetchActiveListingsInPage moves to one listing page and reads it. Pages
// below 1 are treated as 1; pages past the last one are out of range.
func (s *Scraper) FetchActiveListingsInPage(ctx context.Context, productID string, pageNumber int) (*models.ListingsPageResult, error) {
	url := s.opts.ProductURL(productID)
	target := max(pageNumber, 1)
	res := &models.ListingsPageResult{ProductID: productID, URL: url, TargetPage: target, Listings: []models.ListingRecord{}}

	meta, err := s.execute(ctx, "listings_in_page", func(r *run) error {
		if err := s.load(ctx, r, url); err != nil {
			return err
		}
		if _, err := s.readListings(ctx, r.page); err != nil {
			return err
		}

		cursor := s.deps.Traverser.Cursor(r.page)
		res.TotalPages = cursor.LastPage
		if target > cursor.LastPage {
			return fail(models.ErrPageOutOfRange, fmt.Errorf("page %d requested, last page is %d", target, cursor.LastPage))
		}

		landed, err := s.deps.Traverser.NavigateToPage(ctx, r.page, url, target, cursor.LastPage)
		if err != nil {
			return err
		}
		if err := probeAfterHop(r.page); err != nil {
			return err
		}

		raws, err := s.readListings(ctx, r.page)
		if err != nil {
			return err
		}

		res.CurrentPage = landed.CurrentPage
		res.Listings = parser.NormalizeListings(raws)
		res.ListingsCount = len(res.Listings)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if meta.Error == models.ErrBlockedOrChallenge {
		res.TotalPages = 0
		res.CurrentPage = 0
		res.Listings = []models.ListingRecord{}
		res.ListingsCount = 0
	}
	res.Meta = meta
	return res, nil
}
