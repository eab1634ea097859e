package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contact-verifier/internal/insight"
	"github.com/sells-group/contact-verifier/internal/orchestrator"
	"github.com/sells-group/contact-verifier/internal/registry"
	"github.com/sells-group/contact-verifier/internal/store"
	"github.com/sells-group/contact-verifier/internal/verify"
	"github.com/sells-group/contact-verifier/pkg/anthropic"
	sfpkg "github.com/sells-group/contact-verifier/pkg/salesforce"
)

// env bundles the wired pipeline components for a command invocation.
type env struct {
	Store        store.Store
	Registry     registry.IdentityRegistry
	Verifier     *verify.Verifier
	Orchestrator *orchestrator.Orchestrator
	Insight      *insight.Generator // nil when no API key is configured
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	reg, err := initRegistry()
	if err != nil {
		st.Close()
		return nil, err
	}

	verifier, err := initVerifier(st, reg)
	if err != nil {
		st.Close()
		return nil, err
	}

	orch := orchestrator.New(st, verifier, orchestrator.Options{
		ContactDelay: time.Duration(cfg.Batch.ContactDelayMs) * time.Millisecond,
		Workers:      cfg.Batch.Workers,
	})

	return &env{
		Store:        st,
		Registry:     reg,
		Verifier:     verifier,
		Orchestrator: orch,
		Insight:      initInsight(),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "contacts.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initRegistry wires the live Salesforce registry when JWT credentials are
// configured and falls back to the seeded fixture otherwise.
func initRegistry() (registry.IdentityRegistry, error) {
	if !cfg.Salesforce.HasCredentials() {
		zap.L().Info("salesforce credentials absent, using fixture registry")
		return registry.NewFixture(), nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	client := sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Rate.RegistryRPS))
	return registry.NewSalesforce(client), nil
}

func initVerifier(st store.Store, reg registry.IdentityRegistry) (*verify.Verifier, error) {
	lists, err := verify.LoadFilterLists()
	if err != nil {
		return nil, err
	}

	email := verify.NewEmailVerifier(
		verify.NewNetResolver(),
		verify.NewDialProber(time.Duration(cfg.Verify.Email.SMTPTimeoutSecs)*time.Second),
		lists,
		verify.EmailOptions{
			DNSTimeout:     time.Duration(cfg.Verify.Email.DNSTimeoutSecs) * time.Second,
			SMTPTimeout:    time.Duration(cfg.Verify.Email.SMTPTimeoutSecs) * time.Second,
			HelloDomain:    cfg.Verify.Email.SMTPHelloDomain,
			MaxSuggestions: cfg.Verify.Email.MaxSuggestions,
			ValidThreshold: cfg.Verify.ValidThreshold,
			DNSLimiter:     rate.NewLimiter(rate.Limit(cfg.Rate.DNSRPS), 1),
			SMTPLimiter:    rate.NewLimiter(rate.Limit(cfg.Rate.SMTPRPS), 1),
		},
	)

	phone := verify.NewPhoneVerifier(verify.NewLibPhoneMetadata(), lists, verify.PhoneOptions{
		DefaultRegion:  cfg.Verify.Phone.DefaultRegion,
		ValidThreshold: cfg.Verify.ValidThreshold,
	})

	regLimit := rate.NewLimiter(rate.Limit(cfg.Rate.RegistryRPS), 1)
	return verify.NewVerifier(st, reg, email, phone, regLimit), nil
}

func initInsight() *insight.Generator {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	return insight.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
}
