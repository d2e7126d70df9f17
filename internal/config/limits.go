package config

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConnHeadroom is the number of pooled connections that must stay free of
// claim transactions: one for the checkpoint writer and one for identity and
// feedback writes.
const ConnHeadroom = 2

// CallBudget returns the longest one remote call may take when every attempt
// times out and every wait between attempts is maximal.
func (c LLMConfig) CallBudget() time.Duration {
	attempts := time.Duration(max(c.MaxAttempts, 1))
	return attempts*c.CallTimeout + (attempts-1)*(c.WaitOffset+c.WaitWindow)
}

// validateLimits checks the settings that only make sense together.
func validateLimits(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(Config)
	if !ok {
		return
	}

	if minConns := cfg.Pipeline.Workers + ConnHeadroom; cfg.Database.MaxOpenConns < minConns {
		sl.ReportError(cfg.Database.MaxOpenConns, "Database.MaxOpenConns", "MaxOpenConns",
			"gte_workers_headroom", strconv.Itoa(minConns))
	}

	if cfg.Pipeline.CommitMargin >= cfg.Pipeline.ClaimLease {
		sl.ReportError(cfg.Pipeline.CommitMargin, "Pipeline.CommitMargin", "CommitMargin",
			"lt_claim_lease", cfg.Pipeline.ClaimLease.String())
		return
	}
	if need := cfg.LLM.CallBudget() + cfg.Pipeline.CommitMargin; need > cfg.Pipeline.ClaimLease {
		sl.ReportError(cfg.Pipeline.ClaimLease, "Pipeline.ClaimLease", "ClaimLease",
			"gte_call_budget", need.String())
	}
}
