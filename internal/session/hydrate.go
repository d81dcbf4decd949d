package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/maltedev/tcg-price-scraper/internal/models"
)

// Hydrator seeds the store from an environment provided blob. It runs at most
// once per process and never overwrites an existing state.
type Hydrator struct {
	once    sync.Once
	written bool
	err     error
}

var bootHydrator Hydrator

// HydrateFromBlob runs the process wide hydration. Calls after the first
// return the first outcome.
func HydrateFromBlob(ctx context.Context, store Store, encoded string) (bool, error) {
	return bootHydrator.Hydrate(ctx, store, encoded)
}

// Hydrate decodes a base64 state blob and saves it if the store is empty.
// It reports whether the store was written.
func (h *Hydrator) Hydrate(ctx context.Context, store Store, encoded string) (bool, error) {
	h.once.Do(func() {
		h.written, h.err = hydrate(ctx, store, encoded)
	})
	return h.written, h.err
}

func hydrate(ctx context.Context, store Store, encoded string) (bool, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return false, nil
	}

	state, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, fmt.Errorf("failed to decode state blob: %w", err)
	}
	if !json.Valid(state) {
		return false, fmt.Errorf("state blob is not valid JSON")
	}

	_, err = store.Load(ctx)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNoState):
		return false, err
	}

	if err := store.Save(ctx, state); err != nil {
		return false, err
	}
	return true, nil
}

type storedCookie struct {
	Name    string  `json:"name"`
	Domain  string  `json:"domain"`
	Path    string  `json:"path"`
	Expires float64 `json:"expires"`
}

// CookiesFromState lists cookies of a serialized state without their values.
func CookiesFromState(state []byte) ([]models.CookieInfo, error) {
	var parsed struct {
		Cookies []storedCookie `json:"cookies"`
	}
	if err := json.Unmarshal(state, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}

	out := make([]models.CookieInfo, 0, len(parsed.Cookies))
	for _, c := range parsed.Cookies {
		out = append(out, models.CookieInfo{Name: c.Name, Domain: c.Domain, Path: c.Path, Expires: c.Expires})
	}
	return out, nil
}

// LocalStorageFromState lists the local storage items of a serialized state
// per origin. Values are reduced to their length.
func LocalStorageFromState(state []byte) ([]models.LocalStorageEntry, error) {
	var parsed struct {
		Origins []struct {
			Origin       string `json:"origin"`
			LocalStorage []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"localStorage"`
		} `json:"origins"`
	}
	if err := json.Unmarshal(state, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}

	out := []models.LocalStorageEntry{}
	for _, o := range parsed.Origins {
		for _, item := range o.LocalStorage {
			out = append(out, models.LocalStorageEntry{Origin: o.Origin, Name: item.Name, Size: len(item.Value)})
		}
	}
	return out, nil
}
