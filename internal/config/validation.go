// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/emiago/sipgo/sip"
	"github.com/go-playground/validator/v10"

	"github.com/ManuGH/rcsshare/internal/domain/session/store"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidationError lists every failing field of a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg AppConfig) error {
	var problems []string

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	switch cfg.Store.Backend {
	case store.BackendPostgres:
		if cfg.Store.DSN == "" {
			problems = append(problems, "store.dsn: required for the postgres backend")
		}
	case store.BackendSqlite, store.BackendBadger:
		if cfg.Store.Path == "" {
			problems = append(problems, "store.path: required for file backends")
		}
	}
	if cfg.Capability.Backend == "redis" && cfg.Capability.Redis.Addr == "" {
		problems = append(problems, "capability.redis.addr: required for the redis backend")
	}
	if cfg.Signaling.LocalURI != "" {
		var u sip.Uri
		if err := sip.ParseUri(cfg.Signaling.LocalURI, &u); err != nil {
			problems = append(problems, fmt.Sprintf("signaling.localUri: %v", err))
		}
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		problems = append(problems, "telemetry.endpoint: required when telemetry is enabled")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), maskValue(field, fe.Value()))
	}
	return fmt.Sprintf("%s: failed %s", field, fe.Tag())
}

func maskValue(field string, v interface{}) interface{} {
	if isSensitiveKey(field) {
		return "***"
	}
	return v
}

// ParsedLocalURI parses the configured local identity.
func (c SignalingConfig) ParsedLocalURI() (sip.Uri, error) {
	var u sip.Uri
	if err := sip.ParseUri(c.LocalURI, &u); err != nil {
		return sip.Uri{}, fmt.Errorf("parse local uri: %w", err)
	}
	return u, nil
}
