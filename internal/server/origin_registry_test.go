package server

import (
	"testing"

	"github.com/any-hub/any-cache/internal/config"
)

func TestOriginRegistryLookupByName(t *testing.T) {
	cfg := &config.Config{
		Origins: []config.OriginConfig{
			{Name: "unsplash", Upstream: "https://images.unsplash.com"},
			{Name: "mirror", Upstream: "http://10.0.0.5:8080/static/"},
		},
	}

	registry, err := NewOriginRegistry(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	route, ok := registry.Lookup("Unsplash")
	if !ok {
		t.Fatalf("expected unsplash route")
	}
	if route.UpstreamURL.Host != "images.unsplash.com" {
		t.Fatalf("unexpected upstream host: %s", route.UpstreamURL.Host)
	}

	if _, ok := registry.Lookup("unknown"); ok {
		t.Fatalf("unknown origin should not resolve")
	}

	list := registry.List()
	if len(list) != 2 || list[0].Config.Name != "unsplash" || list[1].Config.Name != "mirror" {
		t.Fatalf("list should keep config order: %+v", list)
	}
}

func TestOriginRegistryResolve(t *testing.T) {
	cfg := &config.Config{
		Origins: []config.OriginConfig{
			{Name: "mirror", Upstream: "http://10.0.0.5:8080/static/"},
			{Name: "cdn", Upstream: "https://cdn.example.com"},
		},
	}
	registry, err := NewOriginRegistry(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testCases := []struct {
		name   string
		origin string
		path   string
		query  string
		want   string
	}{
		{"base path kept", "mirror", "img/a.png", "", "http://10.0.0.5:8080/static/img/a.png"},
		{"leading slash", "cdn", "/a.png", "w=200", "https://cdn.example.com/a.png?w=200"},
		{"empty path", "cdn", "", "", "https://cdn.example.com/"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := registry.Resolve(tc.origin, tc.path, tc.query)
			if !ok {
				t.Fatalf("origin %s should resolve", tc.origin)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if _, ok := registry.Resolve("missing", "a", ""); ok {
		t.Fatalf("missing origin should not resolve")
	}
}

func TestOriginRegistryRejectsDuplicates(t *testing.T) {
	cfg := &config.Config{
		Origins: []config.OriginConfig{
			{Name: "cdn", Upstream: "https://a.example.com"},
			{Name: "CDN", Upstream: "https://b.example.com"},
		},
	}
	if _, err := NewOriginRegistry(cfg); err == nil {
		t.Fatalf("duplicate alias should fail")
	}
}

func TestOriginRegistryEmptyConfig(t *testing.T) {
	registry, err := NewOriginRegistry(&config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registry.List() != nil {
		t.Fatalf("empty registry should list nothing")
	}
	if _, err := NewOriginRegistry(nil); err == nil {
		t.Fatalf("nil config should fail")
	}
}
