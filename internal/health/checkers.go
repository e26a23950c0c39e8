// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"time"
)

const defaultProbeTimeout = 2 * time.Second

// FuncChecker adapts a probe function. A failing probe is unhealthy unless
// the checker is informational, in which case it only degrades.
type FuncChecker struct {
	name          string
	probe         func(ctx context.Context) error
	informational bool
	timeout       time.Duration
}

func NewFuncChecker(name string, probe func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, probe: probe, timeout: defaultProbeTimeout}
}

// Informational marks failures of c as degraded instead of unhealthy.
func Informational(c *FuncChecker) *FuncChecker {
	c.informational = true
	return c
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.probe(ctx); err != nil {
		status := StatusUnhealthy
		if c.informational {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// RecoveryState reports the startup reconciliation of the session store.
type RecoveryState interface {
	Recovered() bool
}

// RecoveryChecker is unhealthy until the startup reconciliation finished.
// Records the pass could not update degrade it.
type RecoveryChecker struct {
	State  RecoveryState
	Failed func() int
}

func (c *RecoveryChecker) Name() string { return "session_recovery" }

func (c *RecoveryChecker) Check(context.Context) CheckResult {
	if !c.State.Recovered() {
		return CheckResult{Status: StatusUnhealthy, Message: "startup reconciliation pending"}
	}
	if c.Failed != nil {
		if n := c.Failed(); n > 0 {
			return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("%d stale records left for the sweeper", n)}
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "reconciled"}
}
