package tls

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sourcepole/qgis-interlis-plugin/internal/config"
)

func TestDNSSolver(t *testing.T) {
	solver, err := dnsSolver(config.DNSConfig{})
	if err != nil || solver != nil {
		t.Errorf("dnsSolver(none) = %v, %v; want nil, nil", solver, err)
	}

	solver, err = dnsSolver(config.DNSConfig{Provider: ProviderAzure, SubscriptionID: "sub", ResourceGroupName: "dns"})
	if err != nil {
		t.Fatalf("dnsSolver(azure) error = %v", err)
	}
	if solver == nil || solver.DNSProvider == nil {
		t.Error("dnsSolver(azure) should configure a provider")
	}

	if _, err := dnsSolver(config.DNSConfig{Provider: "route53"}); err == nil {
		t.Error("dnsSolver(route53) should fail")
	}
}

func TestNewManagerValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		cfg  config.TLSConfig
	}{
		{"no domains", config.TLSConfig{Email: "gis@example.com"}},
		{"no email", config.TLSConfig{Domains: []string{"interlis.example.com"}}},
		{"unknown provider", config.TLSConfig{
			Domains: []string{"interlis.example.com"},
			Email:   "gis@example.com",
			DNS:     config.DNSConfig{Provider: "route53"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg, logger); err == nil {
				t.Error("NewManager() should fail")
			}
		})
	}
}
