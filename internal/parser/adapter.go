package parser

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
)

// ErrContainerNotFound means the listings region is not in the DOM.
var ErrContainerNotFound = errors.New("listings container not found")

// ListingsContainer matches the region that holds the seller listings.
const ListingsContainer = `.listing-item, section.product-details__listings, .product-details__listings-results, [data-testid="listings"]`

// ListingSource reads raw listing rows from a live page. It is the only piece
// that knows the listing markup.
type ListingSource interface {
	RawListings(page browser.Page) ([]RawListing, error)
}

// ScriptListingSource runs one batched DOM query in the page. Price, shipping
// and seller sit in sibling nodes that lose their association once the DOM
// is serialized, so this cannot run against HTML.
type ScriptListingSource struct {
	Script string
}

func NewScriptListingSource() *ScriptListingSource {
	return &ScriptListingSource{Script: listingScript}
}

type scriptResult struct {
	Found bool         `json:"found"`
	Rows  []RawListing `json:"rows"`
}

func (s *ScriptListingSource) RawListings(page browser.Page) ([]RawListing, error) {
	out, err := page.Evaluate(s.Script, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate listing script: %w", err)
	}

	result, err := decodeScriptResult(out)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, ErrContainerNotFound
	}

	return result.Rows, nil
}

// the evaluate result arrives as generic maps; round trip through JSON to
// get typed rows
func decodeScriptResult(out any) (*scriptResult, error) {
	if out == nil {
		return nil, ErrContainerNotFound
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing result: %w", err)
	}

	var result scriptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode listing result: %w", err)
	}

	return &result, nil
}

const listingScript = `() => {
  const text = (el) => (el && el.textContent ? el.textContent.replace(/\s+/g, ' ').trim() : '');
  const items = Array.from(document.querySelectorAll(
    '.listing-item, [data-testid="listing-item"], .product-listing'
  ));
  const region = document.querySelector(
    'section.product-details__listings, .product-details__listings-results, [data-testid="listings"]'
  );
  if (!items.length && !region) {
    return { found: false, rows: [] };
  }

  const rows = items.map((item) => {
    const priceEl = item.querySelector(
      '.listing-item__listing-data__info__price, .listing-item__price, [class*="__price"]'
    );

    let shipEl = priceEl ? priceEl.nextElementSibling : null;
    if (!shipEl || !/ship/i.test(text(shipEl))) {
      shipEl = item.querySelector('.shipping-messages__price, [class*="shipping"]');
    }

    const sellerEl = item.querySelector('.seller-info__name, a[href*="/sellers/"], [class*="seller-info__name"]');
    let sellerId = '';
    const href = sellerEl && sellerEl.getAttribute ? sellerEl.getAttribute('href') || '' : '';
    const idMatch = href.match(/sellers\/[^/]+\/([A-Za-z0-9]+)/) || href.match(/seller=([A-Za-z0-9]+)/);
    if (idMatch) {
      sellerId = idMatch[1];
    }

    const condEl = item.querySelector('.listing-item__listing-data__info__condition, [class*="condition"]');
    const qtyEl = item.querySelector('.add-to-cart__available, [class*="available"], [class*="quantity"]');
    const infoEl = item.querySelector('.listing-item__listing-data__listo, .listing-item__info, [class*="custom-listing"]');

    return {
      id: item.getAttribute('data-listing-id') || item.getAttribute('data-listingid') || '',
      condition: text(condEl),
      priceText: text(priceEl),
      shippingText: text(shipEl),
      shippingHasAnchor: !!(shipEl && shipEl.querySelector('a')),
      seller: text(sellerEl),
      sellerId: sellerId,
      qtyText: text(qtyEl),
      info: text(infoEl),
    };
  });

  return { found: true, rows: rows };
}`
