package predictor

import "github.com/agentflow/agentflow/internal/models"

// AgentProfile declares the static routing traits of one agent: the skill
// keywords matched against task descriptions and the role used for
// complexity-based score adjustments.
type AgentProfile struct {
	Keywords []string
	Role     models.AgentRole
}

// Catalog maps agent names to their declared profiles. It is injected into the
// Predictor so deployments with different agent sets can coexist.
type Catalog map[string]AgentProfile

// DefaultCatalog returns the standard twelve-agent deployment catalog
func DefaultCatalog() Catalog {
	return Catalog{
		"DIRECTOR": {
			Keywords: []string{"strategy", "plan", "coordinate", "manage", "lead"},
			Role:     models.RoleCoordinator,
		},
		"PROJECTORCHESTRATOR": {
			Keywords: []string{"orchestrate", "workflow", "pipeline", "coordinate"},
			Role:     models.RoleSpecialist,
		},
		"SECURITY": {
			Keywords: []string{"security", "audit", "vulnerability", "threat", "auth"},
			Role:     models.RoleSpecialist,
		},
		"ARCHITECT": {
			Keywords: []string{"design", "architecture", "pattern", "structure", "framework"},
			Role:     models.RoleCoordinator,
		},
		"DATABASE": {
			Keywords: []string{"database", "sql", "schema", "data", "postgresql"},
			Role:     models.RoleSpecialist,
		},
		"DATASCIENCE": {
			Keywords: []string{"ml", "analytics", "prediction", "model", "statistics"},
			Role:     models.RoleSpecialist,
		},
		"MLOPS": {
			Keywords: []string{"pipeline", "deployment", "automation", "ci/cd"},
			Role:     models.RoleSpecialist,
		},
		"CONSTRUCTOR": {
			Keywords: []string{"build", "create", "implement", "develop"},
			Role:     models.RoleExecutor,
		},
		"DEBUGGER": {
			Keywords: []string{"debug", "fix", "error", "issue", "troubleshoot"},
			Role:     models.RoleExecutor,
		},
		"TESTBED": {
			Keywords: []string{"test", "validate", "verify", "quality"},
			Role:     models.RoleSpecialist,
		},
		"MONITOR": {
			Keywords: []string{"monitor", "metrics", "performance", "observe"},
			Role:     models.RoleSpecialist,
		},
		"OPTIMIZER": {
			Keywords: []string{"optimize", "performance", "speed", "efficiency"},
			Role:     models.RoleSpecialist,
		},
	}
}

// SeedCapabilities builds bootstrap capability rows for every catalog agent
// using neutral priors. Real statistics take over as outcomes are recorded.
func (c Catalog) SeedCapabilities() []models.AgentCapability {
	caps := make([]models.AgentCapability, 0, len(c))
	for name, profile := range c {
		caps = append(caps, models.AgentCapability{
			Name:            name,
			AvgExecutionMs:  5000,
			AvgQualityScore: 0.7,
			SuccessRate:     0.8,
			SkillKeywords:   profile.Keywords,
		})
	}
	return caps
}
