package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

const snapshotTitle = "Sales History Snapshot"

var (
	historyControls = []string{
		`.latest-sales__header__history button`,
		`.latest-sales__header__history`,
		`button:has-text("History")`,
		`button[aria-label*="History"]`,
		`button:has-text("Sales History")`,
	}

	// plain CSS only, these go through document.querySelector
	scriptedHistoryControls = []string{
		`.latest-sales__header__history button`,
		`.latest-sales__header__history`,
		`button[aria-label*="History"]`,
	}

	errControlNotClicked = errors.New("no history control in DOM")
)

type dialogContainer struct {
	name     string
	selector string
	// wholePage reads the full document when the match is only the heading
	wholePage bool
}

var dialogContainers = []dialogContainer{
	{name: "role", selector: `role=dialog[name=/Sales\s+History\s+Snapshot/i]`},
	{name: "modal", selector: `[role="dialog"], .modal__content, .modal, [class*="modal__"]`},
	{name: "text", selector: `text=/Sales\s+History\s+Snapshot/i`, wholePage: true},
}

const clickHistoryScript = `(selectors) => {
  for (const sel of selectors) {
    const el = document.querySelector(sel);
    if (el) {
      el.click();
      return true;
    }
  }
  return false;
}`

func (s *Scraper) historyStrategies() []browser.Strategy {
	strategies := browser.VisibleClickStrategies(historyControls, s.opts.ControlTimeout)
	strategies = append(strategies,
		browser.Strategy{
			Name: "scripted click",
			Try: func(page browser.Page) error {
				out, err := page.Evaluate(clickHistoryScript, scriptedHistoryControls)
				if err != nil {
					return err
				}
				if clicked, _ := out.(bool); !clicked {
					return errControlNotClicked
				}
				return nil
			},
		},
		browser.PressStrategy(historyControls[0], "Enter", s.opts.ControlTimeout),
	)
	return strategies
}

// openSnapshot opens the sales history dialog and parses what it shows.
func (s *Scraper) openSnapshot(ctx context.Context, page browser.Page) (*models.SnapshotPayload, error) {
	used, err := browser.FirstSuccess(page, s.historyStrategies())
	if err != nil {
		return nil, fail(models.ErrTimeoutDialog, err)
	}
	s.logger.Debug("history control activated", "strategy", used)

	container, err := s.waitForDialog(ctx, page)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("dialog found", "strategy", container.name)

	var html, text string
	if container.wholePage {
		html, err = page.Content()
		text, _ = page.InnerText("body", s.opts.ControlTimeout)
	} else {
		html, err = page.InnerHTML(container.selector, s.opts.ControlTimeout)
		text, _ = page.InnerText(container.selector, s.opts.ControlTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dialog: %w", err)
	}

	payload, err := s.deps.Parser.ParseSnapshot(snapshotTitle, html, text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dialog: %w", err)
	}
	if payload.IsEmpty() {
		return nil, fail(models.ErrDialogEmpty, fmt.Errorf("dialog %q has no tables, stats or text", container.name))
	}
	return payload, nil
}

// waitForDialog polls the container strategies; the first visible one wins.
func (s *Scraper) waitForDialog(ctx context.Context, page browser.Page) (dialogContainer, error) {
	for i := 0; i < s.polls(s.opts.DialogWait); i++ {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.PollInterval); err != nil {
				return dialogContainer{}, err
			}
		}
		for _, c := range dialogContainers {
			if visible, err := page.IsVisible(c.selector); err == nil && visible {
				return c, nil
			}
		}
	}
	return dialogContainer{}, fail(models.ErrDialogNotFoundAfterOpen, fmt.Errorf("no dialog within %s", s.opts.DialogWait))
}
