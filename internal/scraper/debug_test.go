package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/tcg-price-scraper/internal/browser/browsertest"
	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/session"
)

func TestProxyIP(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantIP string
	}{
		{name: "json echo", body: `{"ip":"203.0.113.7"}`, wantIP: "203.0.113.7"},
		{name: "plain echo", body: "203.0.113.8\n", wantIP: "203.0.113.8"},
		{name: "unexpected page", body: "<html>Service unavailable</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func() *browsertest.Page {
				p := browsertest.NewPage()
				p.Texts["body"] = tt.body
				return p
			}, session.Options{})
			f.s.opts.IPEchoURL = "https://echo.test/ip"

			res, err := f.s.ProxyIP(context.Background())
			require.NoError(t, err)
			assert.Empty(t, res.Error)
			assert.Equal(t, "https://echo.test/ip", res.EchoURL)
			assert.Equal(t, tt.wantIP, res.IP)
			assert.Contains(t, f.engine.Sessions[0].Page.Gotos, "https://echo.test/ip")
		})
	}
}

func TestLocalStorage(t *testing.T) {
	f := newFixture(t, nil, session.Options{})

	entries, err := f.s.LocalStorage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	f.store.state = []byte(`{"cookies":[],"origins":[{"origin":"https://www.tcgplayer.com","localStorage":[{"name":"cart","value":"secret"}]}]}`)
	entries, err = f.s.LocalStorage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.LocalStorageEntry{{Origin: "https://www.tcgplayer.com", Name: "cart", Size: 6}}, entries)
}

func TestTrace(t *testing.T) {
	f := newFixture(t, func() *browsertest.Page {
		p := browsertest.NewPage()
		p.TitleText = "Dark Magician | TCGplayer"
		p.Counts[accountSel] = 1
		return p
	}, session.Options{})

	res, err := f.s.Trace(context.Background(), productURL)
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, productURL, res.FinalURL)

	names := []string{}
	for _, st := range res.Steps {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"session", "navigate", "challenge_check", "authenticated", "title"}, names)
	assert.Equal(t, "true", res.Steps[3].Detail)
	assert.Equal(t, "Dark Magician | TCGplayer", res.Steps[4].Detail)
	for _, st := range res.Steps[1:] {
		assert.True(t, st.OK, st.Name)
	}
}

func TestTraceStopsAtChallenge(t *testing.T) {
	f := newFixture(t, func() *browsertest.Page {
		p := browsertest.NewPage()
		p.TitleText = "Just a moment..."
		return p
	}, session.Options{})

	res, err := f.s.Trace(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, models.ErrBlockedOrChallenge, res.Error)
	require.Len(t, res.Steps, 3)

	last := res.Steps[2]
	assert.Equal(t, "challenge_check", last.Name)
	assert.False(t, last.OK)
	assert.NotEmpty(t, last.Error)
	assert.True(t, f.engine.AllClosed())
}

func TestMyAccount(t *testing.T) {
	const accountURL = "https://www.tcgplayer.com/myaccount/"

	tests := []struct {
		name      string
		signedIn  bool
		wantFinal string
	}{
		{name: "signed in", signedIn: true, wantFinal: accountURL},
		{name: "redirected to login", wantFinal: loginURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func() *browsertest.Page {
				p := browsertest.NewPage()
				p.OnGoto = func(p *browsertest.Page, url string) error {
					p.CurrentURL = url
					if url == accountURL && !tt.signedIn {
						p.CurrentURL = loginURL
					}
					if tt.signedIn {
						p.Counts[accountSel] = 1
					}
					return nil
				}
				return p
			}, session.Options{})

			res, err := f.s.MyAccount(context.Background())
			require.NoError(t, err)
			assert.Empty(t, res.Error)
			assert.Equal(t, accountURL, res.URL)
			assert.Equal(t, tt.wantFinal, res.FinalURL)
			assert.Equal(t, tt.signedIn, res.Authenticated)
		})
	}
}
