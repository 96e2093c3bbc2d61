// Package workflow holds the case plan engine: the step catalog, plan
// instantiation, readiness propagation, and workspace ranking. Everything in
// this package is pure domain logic; persistence and access control live in
// the services layer.
package workflow

import (
	"gopkg.in/yaml.v3"

	"caseflow/pkg/models"
)

// Step inclusion conditions evaluated against the intake record. An empty
// condition always includes the step.
const (
	ConditionHasWill              = "has_will"
	ConditionRequiresLegalSupport = "requires_legal_support"
)

// StepTemplate is one catalog entry. DependsOn references other templates by
// key within the same catalog.
type StepTemplate struct {
	Key       string   `yaml:"key" json:"key"`
	Title     string   `yaml:"title" json:"title"`
	Sequence  int      `yaml:"sequence" json:"sequence"`
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Condition string   `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Catalog is an immutable, versioned set of step templates for a case type.
type Catalog struct {
	Name    string         `yaml:"name" json:"name"`
	Version int64          `yaml:"version" json:"version"`
	Steps   []StepTemplate `yaml:"steps" json:"steps"`
}

// Canonical succession-handling step keys.
const (
	StepCollectCivilRecords          = "collect-civil-records"
	StepGatherEstateInventory        = "gather-estate-inventory"
	StepSubmitSuccessionNotification = "submit-succession-notification"
	StepValidateWill                 = "validate-will"
	StepEngageLegalSupport           = "engage-legal-support"
)

// DefaultCatalog returns the built-in succession catalog used when a tenant
// has no active playbook.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Name:    "succession-default",
		Version: 1,
		Steps: []StepTemplate{
			{Key: StepCollectCivilRecords, Title: "Collect civil records", Sequence: 10},
			{Key: StepGatherEstateInventory, Title: "Gather estate inventory", Sequence: 20},
			{
				Key:       StepSubmitSuccessionNotification,
				Title:     "Submit succession notification",
				Sequence:  30,
				DependsOn: []string{StepCollectCivilRecords, StepGatherEstateInventory},
			},
			{
				Key:       StepValidateWill,
				Title:     "Validate will",
				Sequence:  40,
				DependsOn: []string{StepGatherEstateInventory},
				Condition: ConditionHasWill,
			},
			{
				Key:       StepEngageLegalSupport,
				Title:     "Engage legal support",
				Sequence:  50,
				DependsOn: []string{StepValidateWill},
				Condition: ConditionRequiresLegalSupport,
			},
		},
	}
}

// ParseCatalog decodes a YAML template body (playbook or catalog file) and
// validates it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, ValidationErrorf("invalid catalog template: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks template integrity: unique keys, known conditions, resolvable
// dependencies, and an acyclic dependency graph.
func (c *Catalog) Validate() error {
	if len(c.Steps) == 0 {
		return ValidationErrorf("catalog %q has no steps", c.Name)
	}

	byKey := make(map[string]*StepTemplate, len(c.Steps))
	for i := range c.Steps {
		t := &c.Steps[i]
		if t.Key == "" {
			return ValidationErrorf("catalog %q: step %d has no key", c.Name, i)
		}
		if _, dup := byKey[t.Key]; dup {
			return ValidationErrorf("catalog %q: duplicate step key %q", c.Name, t.Key)
		}
		switch t.Condition {
		case "", ConditionHasWill, ConditionRequiresLegalSupport:
		default:
			return ValidationErrorf("catalog %q: step %q has unknown condition %q", c.Name, t.Key, t.Condition)
		}
		byKey[t.Key] = t
	}

	for _, t := range c.Steps {
		for _, dep := range t.DependsOn {
			if dep == t.Key {
				return ValidationErrorf("catalog %q: step %q depends on itself", c.Name, t.Key)
			}
			if _, ok := byKey[dep]; !ok {
				return ValidationErrorf("catalog %q: step %q depends on unknown step %q", c.Name, t.Key, dep)
			}
		}
	}

	if _, err := c.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}

// TopologicalOrder returns the step keys in dependency order using Kahn's
// algorithm, or a validation error if the template contains a cycle.
func (c *Catalog) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(c.Steps))
	dependents := make(map[string][]string, len(c.Steps))
	for _, t := range c.Steps {
		if _, ok := indegree[t.Key]; !ok {
			indegree[t.Key] = 0
		}
		for _, dep := range t.DependsOn {
			indegree[t.Key]++
			dependents[dep] = append(dependents[dep], t.Key)
		}
	}

	var queue []string
	for _, t := range c.Steps {
		if indegree[t.Key] == 0 {
			queue = append(queue, t.Key)
		}
	}

	order := make([]string, 0, len(c.Steps))
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		order = append(order, key)
		for _, next := range dependents[key] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(c.Steps) {
		return nil, ValidationErrorf("catalog %q: dependency template contains a cycle", c.Name)
	}
	return order, nil
}

// PlanStep is an instantiated template for one case: the template plus the
// dependency keys that survived conditional pruning.
type PlanStep struct {
	Template  StepTemplate
	DependsOn []string
}

// Instantiate selects the templates that apply to the given intake and prunes
// dependency edges that reference steps excluded for this case. The result
// inherits the catalog's acyclicity.
func (c *Catalog) Instantiate(intake *models.IntakeRecord) ([]PlanStep, error) {
	if intake == nil {
		return nil, ValidationErrorf("intake record is required")
	}

	included := make(map[string]bool, len(c.Steps))
	for _, t := range c.Steps {
		if stepIncluded(t, intake) {
			included[t.Key] = true
		}
	}
	if len(included) == 0 {
		return nil, StateErrorf("catalog %q: no steps apply to this intake", c.Name)
	}

	plan := make([]PlanStep, 0, len(included))
	for _, t := range c.Steps {
		if !included[t.Key] {
			continue
		}
		var deps []string
		for _, dep := range t.DependsOn {
			if included[dep] {
				deps = append(deps, dep)
			}
		}
		plan = append(plan, PlanStep{Template: t, DependsOn: deps})
	}
	return plan, nil
}

func stepIncluded(t StepTemplate, intake *models.IntakeRecord) bool {
	switch t.Condition {
	case ConditionHasWill:
		return intake.HasWill
	case ConditionRequiresLegalSupport:
		return intake.RequiresLegalSupport
	default:
		return true
	}
}
