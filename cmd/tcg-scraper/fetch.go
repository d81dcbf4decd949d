package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/scraper"
)

var asTable bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one scraping operation and print the result",
}

var lastSoldCmd = &cobra.Command{
	Use:   "last-sold <url>",
	Short: "Most recent sale price of a product page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newScraper().FetchLastSoldOnce(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <url>",
	Short: "Contents of the sales history snapshot dialog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newScraper().FetchSalesSnapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

var listingsCmd = &cobra.Command{
	Use:   "listings <product-id>",
	Short: "All active listings of a product, across pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newScraper().FetchActiveListings(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asTable {
			renderListings(os.Stdout, res.Listings, &res.Meta)
			return nil
		}
		return printJSON(os.Stdout, res)
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages <product-id>",
	Short: "Number of listing pages of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newScraper().FetchPagesInProduct(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

var listingsPageCmd = &cobra.Command{
	Use:   "listings-page <product-id> <page>",
	Short: "Active listings of a single listing page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("page must be a number: %w", err)
		}

		res, err := newScraper().FetchActiveListingsInPage(cmd.Context(), args[0], page)
		if err != nil {
			return err
		}
		if asTable {
			renderListings(os.Stdout, res.Listings, &res.Meta)
			return nil
		}
		return printJSON(os.Stdout, res)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the session check and login flow, then print the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newScraper().LoginOnly(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

func init() {
	fetchCmd.PersistentFlags().BoolVar(&asTable, "table", false, "render listings as a table")
	fetchCmd.AddCommand(lastSoldCmd, snapshotCmd, listingsCmd, pagesCmd, listingsPageCmd)
}

func newScraper() *scraper.Scraper {
	s, _, _ := scraper.NewFromConfig(current.cfg, current.engine(), current.store)
	return s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderListings(w io.Writer, listings []models.ListingRecord, meta *models.Meta) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Seller", "Condition", "Price", "Shipping", "Total", "Qty"})

	for _, l := range listings {
		shipping := fmt.Sprintf("$%.2f", l.ShippingPrice)
		if l.ShippingIncluded {
			shipping = "included"
		}
		t.AppendRow(table.Row{
			l.SellerName,
			l.Condition,
			fmt.Sprintf("$%.2f", l.Price),
			shipping,
			fmt.Sprintf("$%.2f", l.TotalPrice()),
			l.QuantityAvailable,
		})
	}

	footer := fmt.Sprintf("%d listings", len(listings))
	if meta.Failed() {
		footer += fmt.Sprintf(" (error: %s)", meta.Error)
	}
	t.AppendFooter(table.Row{footer})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
