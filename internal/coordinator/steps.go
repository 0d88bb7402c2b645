package coordinator

import (
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// relaxableSteps are the only steps that may be demoted to non-critical via
// configuration. Readiness validation, provisioning, data sync, the
// database switch and DNS routing always abort the run when they fail.
var relaxableSteps = map[string]bool{
	model.StepStartTargetServices:   true,
	model.StepValidateTargetTraffic: true,
	model.StepStopSourceServices:    true,
}

// buildSteps assembles the canonical sequence. The same ordered steps run
// in both directions; direction resolves which environment is source and
// which is target.
func buildSteps(cfg config.FailoverConfig) []model.FailoverStep {
	nonCritical := make(map[string]bool, len(cfg.NonCriticalSteps))
	for _, name := range cfg.NonCriticalSteps {
		if relaxableSteps[name] {
			nonCritical[name] = true
		}
	}

	retries := cfg.MaxRetryAttempts
	if retries <= 0 {
		retries = 3
	}

	defs := []struct {
		name        string
		description string
		timeout     time.Duration
	}{
		{model.StepValidateTargetReadiness, "Validate target environment readiness", 60 * time.Second},
		{model.StepProvisionTargetResources, "Provision target resources if needed", 300 * time.Second},
		{model.StepSyncFinalData, "Perform final data synchronization", 120 * time.Second},
		{model.StepSwitchDatabasePrimary, "Switch database primary to target", 180 * time.Second},
		{model.StepStartTargetServices, "Start target cluster services", 240 * time.Second},
		{model.StepUpdateDNSRouting, "Update DNS routing to target", 60 * time.Second},
		{model.StepValidateTargetTraffic, "Validate traffic flow to target", 120 * time.Second},
		{model.StepStopSourceServices, "Gracefully stop source services", 180 * time.Second},
	}

	steps := make([]model.FailoverStep, 0, len(defs))
	for _, d := range defs {
		steps = append(steps, model.FailoverStep{
			Name:        d.name,
			Description: d.description,
			Timeout:     d.timeout,
			RetryCount:  retries,
			Critical:    !nonCritical[d.name],
		})
	}
	return steps
}
