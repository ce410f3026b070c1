package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/menuboard/pkg/apitypes"
)

// PlanLimits describes one subscription tier. Zero limits mean unlimited.
type PlanLimits struct {
	DisplayName   string `yaml:"display_name"`
	PriceCents    int64  `yaml:"price_cents"`
	PeriodDays    int    `yaml:"period_days"`
	MaxCategories int    `yaml:"max_categories"`
	MaxMenuItems  int    `yaml:"max_menu_items"`
}

// PlanCatalog maps each plan to its limits.
type PlanCatalog struct {
	Plans map[apitypes.Plan]PlanLimits `yaml:"plans"`
}

// DefaultPlans is used when no catalog file is configured.
func DefaultPlans() *PlanCatalog {
	return &PlanCatalog{Plans: map[apitypes.Plan]PlanLimits{
		apitypes.PlanTrial:   {DisplayName: "Trial", PeriodDays: 14, MaxCategories: 5, MaxMenuItems: 25},
		apitypes.PlanBasic:   {DisplayName: "Basic", PriceCents: 1900, PeriodDays: 30, MaxCategories: 20, MaxMenuItems: 150},
		apitypes.PlanPremium: {DisplayName: "Premium", PriceCents: 4900, PeriodDays: 30},
	}}
}

// LoadPlans reads the plan catalog from a YAML file.
func LoadPlans(path string) (*PlanCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", path, err)
	}

	var cat PlanCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", path, err)
	}
	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("plan catalog %s: %w", path, err)
	}
	return &cat, nil
}

func (c *PlanCatalog) validate() error {
	for _, p := range []apitypes.Plan{apitypes.PlanTrial, apitypes.PlanBasic, apitypes.PlanPremium} {
		limits, ok := c.Plans[p]
		if !ok {
			return fmt.Errorf("plan %q missing", p)
		}
		if limits.PeriodDays <= 0 {
			return fmt.Errorf("plan %q: period_days must be positive", p)
		}
		if limits.MaxCategories < 0 || limits.MaxMenuItems < 0 {
			return fmt.Errorf("plan %q: limits must not be negative", p)
		}
	}
	for p := range c.Plans {
		if _, err := apitypes.ParsePlan(string(p)); err != nil {
			return err
		}
	}
	return nil
}

// Limits returns the limits for plan, falling back to the trial tier.
func (c *PlanCatalog) Limits(plan apitypes.Plan) PlanLimits {
	if l, ok := c.Plans[plan]; ok {
		return l
	}
	return c.Plans[apitypes.PlanTrial]
}
