// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/civicmap/internal/audit"
	"github.com/tomtom215/civicmap/internal/auth"
	"github.com/tomtom215/civicmap/internal/config"
	"github.com/tomtom215/civicmap/internal/database"
	"github.com/tomtom215/civicmap/internal/logging"
)

// buildKeyStore resolves statically configured modalities first, then the
// api_keys table. A positive KEY_CACHE_TTL puts a cache in front of both.
func buildKeyStore(cfg *config.Config, db *database.DB) (auth.KeyStore, func(), error) {
	security := logging.NewSecurityLogger()
	for _, m := range cfg.WeakModalities() {
		security.LogWeakSecret(strconv.FormatInt(m.ID, 10), len(m.Secret), cfg.Security.MinSecretLength)
	}

	static := auth.NewStaticKeyStore()
	for _, m := range cfg.Security.Modalities {
		static.Put(auth.Key{ModalityID: auth.ModalityID(m.ID), Secret: []byte(m.Secret), Name: m.Name})
	}

	var keys auth.KeyStore = db
	if static.Len() > 0 {
		keys = auth.ChainKeyStore{static, db}
		logging.Info().Int("count", static.Len()).Msg("Static modalities loaded")
	}

	if cfg.Security.KeyCacheTTL <= 0 {
		return keys, func() {}, nil
	}
	cached, err := auth.NewCachedKeyStore(keys, cfg.Security.KeyCacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return cached, cached.Close, nil
}

// openLedger opens the configured token ledger backend.
func openLedger(cfg *config.LedgerConfig, db *database.DB) (auth.NonceLedger, error) {
	switch cfg.Backend {
	case config.LedgerBackendDuckDB:
		return database.NewTokenLedger(db), nil
	case config.LedgerBackendBadger:
		ledger, err := auth.OpenBadgerLedger(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger ledger at %s: %w", cfg.BadgerPath, err)
		}
		return ledger, nil
	case config.LedgerBackendMemory:
		logging.Warn().Msg("Token ledger is in memory; used tokens become valid again after a restart")
		return auth.NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// eventStream is the auth event transport and, for an embedded NATS
// deployment, the server behind it.
type eventStream struct {
	transport audit.Transport
	embedded  *audit.EmbeddedServer
}

func (e *eventStream) close() {
	if err := e.transport.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing auth event transport")
	}
}

// buildEventStream creates the configured transport. With NATS_EMBEDDED the
// server is started here, on the port of NATS_URL, so that the publisher can
// connect before the tree runs.
func buildEventStream(cfg *config.EventsConfig, timeout time.Duration) (*eventStream, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	if cfg.Transport != config.EventsTransportNATS {
		return &eventStream{transport: audit.NewChannelPublisher(cfg.Topic, 0, logger)}, nil
	}

	natsURL := cfg.NATSURL
	var embedded *audit.EmbeddedServer
	if cfg.NATSEmbedded {
		srv, err := audit.NewEmbeddedServer(audit.EmbeddedServerConfig{
			Port:     embeddedPort(natsURL),
			StoreDir: cfg.NATSStoreDir,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		embedded = srv
		natsURL = srv.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	pub, err := audit.NewNATSPublisher(audit.NATSConfig{URL: natsURL, Topic: cfg.Topic}, logger)
	if err != nil {
		if embedded != nil {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			_ = embedded.Shutdown(ctx)
			cancel()
		}
		return nil, err
	}
	return &eventStream{transport: pub, embedded: embedded}, nil
}

// embeddedPort returns the port of rawURL, or -1 for a random free port.
func embeddedPort(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil || u.Port() == "" {
		return -1
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return -1
	}
	return port
}
