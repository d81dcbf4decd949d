// Package notify delivers monitor events to chat webhooks and redis streams.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// SaleEvent is raised when the most recent sale of a product page changed.
type SaleEvent struct {
	URL        string
	Title      string
	Price      float64
	Previous   *float64
	ObservedAt time.Time
}

// Startup describes a monitor that just started.
type Startup struct {
	URLs     []string
	Interval time.Duration
}

// GraphEvent carries a freshly captured price history chart.
type GraphEvent struct {
	URL        string
	Title      string
	Path       string
	CapturedAt time.Time
}

type Notifier interface {
	NotifySale(ctx context.Context, ev SaleEvent) error
	NotifyStartup(ctx context.Context, s Startup) error
}

// GraphNotifier is implemented by notifiers that can deliver chart images.
type GraphNotifier interface {
	NotifyGraph(ctx context.Context, ev GraphEvent) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifySale(ctx context.Context, ev SaleEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifySale(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyStartup(ctx context.Context, s Startup) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyStartup(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyGraph forwards to the members that handle graphs and skips the rest.
func (m Multi) NotifyGraph(ctx context.Context, ev GraphEvent) error {
	var errs []error
	for _, n := range m {
		g, ok := n.(GraphNotifier)
		if !ok {
			continue
		}
		if err := g.NotifyGraph(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaleMessage renders the chat line for a new sale.
func SaleMessage(ev SaleEvent) string {
	name := ev.Title
	if name == "" {
		name = CardName(ev.URL)
	}

	msg := fmt.Sprintf("💰 New Sale: %s - $%.2f", name, ev.Price)
	if ev.Previous != nil {
		msg += fmt.Sprintf(" (was $%.2f)", *ev.Previous)
	}
	return msg + "\n" + ev.URL
}

// StartupMessage lists the monitored cards and the check interval.
func StartupMessage(s Startup) string {
	var b strings.Builder
	b.WriteString("🚀 **TCGPlayer Monitor Started!**\n\n")
	fmt.Fprintf(&b, "📊 **Monitoring %d cards:**\n", len(s.URLs))
	for _, u := range s.URLs {
		fmt.Fprintf(&b, "• %s\n", CardName(u))
	}
	fmt.Fprintf(&b, "\n⏰ **Check interval:** Every %d minutes\n", int(s.Interval.Minutes()))
	b.WriteString("🔔 **Alerts:** New sales only\n")
	b.WriteString("📈 **Tracking:** Last sold prices\n\n")
	b.WriteString("✅ Ready to monitor! You'll get notified when new sales are detected.")
	return b.String()
}

// GraphMessage captions an uploaded chart.
func GraphMessage(ev GraphEvent) string {
	name := ev.Title
	if name == "" {
		name = CardName(ev.URL)
	}

	var b strings.Builder
	b.WriteString("📊 **TCGPlayer Price Graph Captured**\n\n")
	fmt.Fprintf(&b, "🃏 **Card:** %s\n", name)
	fmt.Fprintf(&b, "⏰ **Time:** %s\n", ev.CapturedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "🔗 **URL:** %s", ev.URL)
	return b.String()
}

// CardName derives a readable name from a product URL such as
// /product/42/pokemon-base-set-charizard. Without a slug the product id is
// used.
func CardName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "Unknown Card"
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg != "product" {
			continue
		}
		switch {
		case i+2 < len(segments) && segments[i+2] != "":
			return titleWords(segments[i+2])
		case i+1 < len(segments) && segments[i+1] != "":
			return "Product " + segments[i+1]
		}
	}
	return "Unknown Card"
}

func titleWords(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
