package scraper

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/sillage/engine"
)

func TestIsAdDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"securepubads.g.doubleclick.net", true},
		{"PAGEAD2.GoogleSyndication.com", true},
		{"cdn.cookielaw.org", true},
		{"www.fragrantica.com", false},
		{"fimgs.net", false},
		{"net", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, isAdDomain(tt.host))
		})
	}
}

func TestBlockPolicy(t *testing.T) {
	p := newBlockPolicy([]string{"Image", "Font", "Bogus"}, true)
	assert.False(t, p.empty())
	assert.Len(t, p.types, 2)

	assert.True(t, p.shouldBlock(proto.NetworkResourceTypeImage, "https://fimgs.net/mdimg/perfume/375x500.590.jpg"))
	assert.True(t, p.shouldBlock(proto.NetworkResourceTypeScript, "https://securepubads.g.doubleclick.net/tag/js/gpt.js"))
	assert.False(t, p.shouldBlock(proto.NetworkResourceTypeDocument, "https://www.fragrantica.com/perfume/Davidoff/Zino-Davidoff-590.html"))
	assert.False(t, p.shouldBlock(proto.NetworkResourceTypeScript, "https://www.fragrantica.com/js/app.js"))

	noAds := newBlockPolicy(nil, false)
	assert.True(t, noAds.empty())
	assert.False(t, noAds.shouldBlock(proto.NetworkResourceTypeScript, "https://doubleclick.net/x.js"))
}

func TestExtraHeaders(t *testing.T) {
	h := extraHeaders(&engine.FetchRequest{URL: "https://www.fragrantica.com/perfume/x.html"})
	assert.Equal(t, "https://www.google.com/search?q=www.fragrantica.com", h["Referer"])

	h = extraHeaders(&engine.FetchRequest{
		URL:     "https://www.fragrantica.com/perfume/x.html",
		Headers: map[string]string{"Referer": "https://example.com", "Accept-Language": "fr"},
	})
	assert.Equal(t, "https://example.com", h["Referer"])
	assert.Equal(t, "fr", h["Accept-Language"])
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"X-A": "1"})
	assert.Equal(t, "1", m["X-A"].Str())
}
