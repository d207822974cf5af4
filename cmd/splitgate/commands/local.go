package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/config"
	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/request"
	"github.com/TimurManjosov/splitgate/internal/rollout"
)

// loadConfig reads the same environment the server does.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClassifier(cfg *config.Config) *classifier.Classifier {
	return classifier.New(classifier.WithPathHints(cfg.PathHints))
}

func newGate(cfg *config.Config, src rollout.Source) (*gate.Gate, error) {
	a, err := allocator.New(cfg.AllocatorSettings(), src)
	if err != nil {
		return nil, err
	}
	return gate.New(newClassifier(cfg), a, gate.Options{
		Cookie:           cfg.CookieOptions(),
		Signals:          request.NewCookieSignals(),
		MarkExemptBypass: cfg.MarkExemptBypass,
		Logger:           zerolog.Nop(),
	}), nil
}

// probeFlags are shared by the commands that evaluate a single visit.
type probeFlags struct {
	userAgent     string
	cookies       []string
	method        string
	pageType      string
	authenticated bool
}

func (p *probeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.userAgent, "ua", "", "User-Agent of the visitor")
	cmd.Flags().StringArrayVar(&p.cookies, "cookie", nil, "Cookie sent by the visitor, as name or name=value (repeatable)")
	cmd.Flags().StringVar(&p.method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&p.pageType, "page-type", "", "Page type resolved by the storefront (post, cart, checkout, account)")
	cmd.Flags().BoolVar(&p.authenticated, "authenticated", false, "Treat the visitor as logged in")
}

func (p *probeFlags) probe(target string) gate.Probe {
	return gate.Probe{
		URL:           target,
		Method:        p.method,
		UserAgent:     p.userAgent,
		Cookies:       p.cookies,
		PageType:      p.pageType,
		Authenticated: p.authenticated,
	}
}
