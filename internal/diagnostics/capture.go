package diagnostics

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

var ErrOutsideDir = errors.New("artifact path outside debug directory")

var unsafeTag = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Capturer writes a screenshot and the serialized DOM of a page to a fixed
// directory. Capture never fails the caller.
type Capturer struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

func NewCapturer(dir string) *Capturer {
	return &Capturer{
		dir:    dir,
		now:    time.Now,
		logger: slog.Default().With("component", "diagnostics"),
	}
}

func (c *Capturer) Dir() string {
	return c.dir
}

func (c *Capturer) baseName(tag string) string {
	tag = strings.Trim(unsafeTag.ReplaceAllString(tag, "_"), "_")
	if tag == "" {
		tag = "capture"
	}
	return fmt.Sprintf("%s_%s_%s", tag, c.now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

// NewPath reserves a file name for tag inside the directory, creating the
// directory if needed. Nothing is written to the file.
func (c *Capturer) NewPath(tag, ext string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create capture dir: %w", err)
	}
	return filepath.Join(c.dir, c.baseName(tag)+ext), nil
}

// Capture snapshots page state. Returned paths are only set for files that
// were actually written; a nil page or unwritable directory yields nil.
func (c *Capturer) Capture(page browser.Page, tag string) *models.Artifacts {
	if page == nil || c == nil {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("failed to create debug dir", "dir", c.dir, "error", err)
		return nil
	}

	base := filepath.Join(c.dir, c.baseName(tag))
	artifacts := &models.Artifacts{}

	shot := base + ".png"
	if err := page.Screenshot(shot); err != nil {
		c.logger.Warn("screenshot failed", "tag", tag, "error", err)
	} else {
		artifacts.Screenshot = shot
	}

	html, err := page.Content()
	if err != nil {
		c.logger.Warn("failed to read page content", "tag", tag, "error", err)
	} else if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		c.logger.Warn("failed to write dom snapshot", "tag", tag, "error", err)
	} else {
		artifacts.DOM = base + ".html"
	}

	if artifacts.Empty() {
		return nil
	}

	c.logger.Info("captured diagnostics", "tag", tag, "screenshot", artifacts.Screenshot, "dom", artifacts.DOM)
	return artifacts
}

// Resolve maps a requested artifact path to a file inside the debug
// directory. Both bare names and paths returned by Capture are accepted.
func (c *Capturer) Resolve(requested string) (string, error) {
	root, err := filepath.Abs(c.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve debug dir: %w", err)
	}

	candidate := requested
	if !filepath.IsAbs(candidate) {
		if rel, err := filepath.Rel(c.dir, filepath.Clean(candidate)); err == nil && !strings.HasPrefix(rel, "..") {
			candidate = filepath.Join(root, rel)
		} else {
			candidate = filepath.Join(root, candidate)
		}
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", ErrOutsideDir
	}

	info, err := os.Stat(candidate)
	if err != nil {
		return "", fmt.Errorf("artifact not found: %w", err)
	}
	if info.IsDir() {
		return "", ErrOutsideDir
	}

	return candidate, nil
}
