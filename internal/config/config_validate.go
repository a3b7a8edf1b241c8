// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/fedmf/internal/validation"
)

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	validators := []func() error{
		c.validateRecommend,
		c.validateStorage,
		c.validateRound,
		c.validateServer,
		c.validateClient,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if c.Recommend.AlphaLong+c.Recommend.BetaRecent <= 0 {
		return fmt.Errorf("recommend.alpha_long and recommend.beta_recent cannot both be zero")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required unless storage.in_memory is set")
	}
	return nil
}

func (c *Config) validateRound() error {
	if c.Round.AutoCloseInterval < 0 {
		return fmt.Errorf("round.auto_close_interval must not be negative, got %s", c.Round.AutoCloseInterval)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Server.RateLimitDisabled || c.Server.RateLimitReqs == 0 {
		return nil
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateClient() error {
	if err := validateHTTPURL(c.Client.BaseURL, "client.base_url"); err != nil {
		return err
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive, got %s", c.Client.Timeout)
	}
	if c.Client.BreakerTimeout <= 0 {
		return fmt.Errorf("client.breaker_timeout must be positive, got %s", c.Client.BreakerTimeout)
	}
	return nil
}

// HasWildcardCORS reports whether any configured origin is "*".
func (c *Config) HasWildcardCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
