// Package tls obtains and renews certificates with CertMagic.
package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"

	"github.com/sourcepole/qgis-interlis-plugin/internal/config"
)

// DNS challenge providers.
const (
	ProviderNone  = ""
	ProviderAzure = "azure"
)

// Manager holds the CertMagic configuration for the served domains.
type Manager struct {
	config config.TLSConfig
	magic  *certmagic.Config
	logger *slog.Logger
}

// NewManager creates a certificate manager. Without a DNS provider the
// HTTP-01 and TLS-ALPN-01 challenges are used.
func NewManager(cfg config.TLSConfig, logger *slog.Logger) (*Manager, error) {
	if len(cfg.Domains) == 0 {
		return nil, errors.New("TLS enabled but no domains specified")
	}
	if cfg.Email == "" {
		return nil, errors.New("TLS enabled but no email specified")
	}

	solver, err := dnsSolver(cfg.DNS)
	if err != nil {
		return nil, err
	}

	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}
	magic := certmagic.NewDefault()

	template := certmagic.ACMEIssuer{
		CA:     certmagic.LetsEncryptProductionCA,
		Email:  cfg.Email,
		Agreed: true,
	}
	if cfg.Staging {
		template.CA = certmagic.LetsEncryptStagingCA
	}
	if solver != nil {
		template.DNS01Solver = solver
		template.DisableHTTPChallenge = true
		template.DisableTLSALPNChallenge = true
	}
	magic.Issuers = []certmagic.Issuer{certmagic.NewACMEIssuer(magic, template)}

	return &Manager{config: cfg, magic: magic, logger: logger}, nil
}

// dnsSolver returns the DNS-01 solver for the configured provider, or nil
// when no provider is set.
func dnsSolver(cfg config.DNSConfig) (*certmagic.DNS01Solver, error) {
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderAzure:
		return &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: &azure.Provider{
					SubscriptionId:    cfg.SubscriptionID,
					ResourceGroupName: cfg.ResourceGroupName,
					ClientId:          cfg.ClientID, // empty uses the system assigned identity
				},
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown DNS provider: %s", cfg.Provider)
	}
}

// Manage obtains certificates for all domains and keeps them renewed.
func (m *Manager) Manage(ctx context.Context) error {
	m.logger.Info("obtaining certificates", "domains", m.config.Domains, "dns_provider", m.config.DNS.Provider)
	if err := m.magic.ManageSync(ctx, m.config.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}
	return nil
}

// TLSConfig returns a server TLS configuration backed by the managed
// certificates.
func (m *Manager) TLSConfig() *tls.Config {
	cfg := m.magic.TLSConfig()
	cfg.NextProtos = append([]string{"h2", "http/1.1"}, cfg.NextProtos...)
	return cfg
}

// ServeTLS serves srv over HTTPS with the managed certificates.
func (m *Manager) ServeTLS(srv *http.Server) error {
	srv.TLSConfig = m.TLSConfig()
	m.logger.Info("starting HTTPS server", "address", srv.Addr, "domains", m.config.Domains)
	return srv.ListenAndServeTLS("", "")
}
