package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"courtbook/internal/model"

	"gopkg.in/yaml.v3"
)

// ResourceConfig is one court or coach in resources.yaml.
type ResourceConfig struct {
	ID         string            `yaml:"id"`
	Kind       string            `yaml:"kind"` // court | coach | package
	Name       string            `yaml:"name"`
	IsActive   bool              `yaml:"is_active"`
	Schedule   []WindowConfig    `yaml:"schedule,omitempty"`
	Promotions []PromotionConfig `yaml:"promotions,omitempty"`
}

// WindowConfig is a weekly opening window.
type WindowConfig struct {
	Days  []int  `yaml:"days"`  // 1=Mon, 7=Sun
	Start string `yaml:"start"` // "06:00"
	End   string `yaml:"end"`   // "22:00"
}

// PromotionConfig is a discount attached to a resource.
type PromotionConfig struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	DiscountType  string   `yaml:"discount_type"` // percentage | fixed
	DiscountValue *float64 `yaml:"discount_value"`
	ValidFrom     string   `yaml:"valid_from"` // RFC3339
	ValidTo       string   `yaml:"valid_to"`
}

// ResourcesConfig is the root configuration for resources.yaml.
type ResourcesConfig struct {
	Resources []ResourceConfig `yaml:"resources"`
}

// LoadResourcesConfig loads and validates the resource catalog from a YAML file.
func LoadResourcesConfig(path string) (*ResourcesConfig, error) {
	if path == "" {
		path = "configs/resources.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resources config: %w", err)
	}

	var cfg ResourcesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse resources config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate resources config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ResourcesConfig) Validate() error {
	if len(c.Resources) == 0 {
		return fmt.Errorf("no resources defined")
	}

	ids := make(map[string]bool)
	for i, r := range c.Resources {
		if r.ID == "" {
			return fmt.Errorf("resource[%d]: id is required", i)
		}
		if ids[r.ID] {
			return fmt.Errorf("resource[%d]: duplicate id '%s'", i, r.ID)
		}
		ids[r.ID] = true

		switch model.ResourceKind(r.Kind) {
		case model.KindCourt, model.KindCoach, model.KindPackage, "":
		default:
			return fmt.Errorf("resource[%d]: unknown kind '%s'", i, r.Kind)
		}

		for j, w := range r.Schedule {
			if err := validateWindow(w, fmt.Sprintf("resource[%d].schedule[%d]", i, j)); err != nil {
				return err
			}
		}

		for j, p := range r.Promotions {
			prefix := fmt.Sprintf("resource[%d].promotions[%d]", i, j)
			promo, err := p.toModel(r.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", prefix, err)
			}
			if err := promo.Validate(); err != nil {
				return fmt.Errorf("%s: %w", prefix, err)
			}
		}
	}

	return nil
}

func validateWindow(w WindowConfig, prefix string) error {
	if len(w.Days) == 0 {
		return fmt.Errorf("%s.days is required", prefix)
	}
	for _, d := range w.Days {
		if d < 1 || d > 7 {
			return fmt.Errorf("%s: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", prefix, d)
		}
	}

	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		return fmt.Errorf("%s.start: invalid format '%s', expected HH:MM", prefix, w.Start)
	}
	end, err := time.Parse("15:04", w.End)
	if err != nil {
		return fmt.Errorf("%s.end: invalid format '%s', expected HH:MM", prefix, w.End)
	}
	if !end.After(start) {
		return fmt.Errorf("%s: end must be after start", prefix)
	}
	return nil
}

func (p PromotionConfig) toModel(targetID string) (model.Promotion, error) {
	from, err := time.Parse(time.RFC3339, p.ValidFrom)
	if err != nil {
		return model.Promotion{}, fmt.Errorf("valid_from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, p.ValidTo)
	if err != nil {
		return model.Promotion{}, fmt.Errorf("valid_to: %w", err)
	}
	dt := model.DiscountType(strings.ToLower(p.DiscountType))
	return model.Promotion{
		ID:            p.ID,
		Name:          p.Name,
		TargetID:      targetID,
		DiscountType:  dt,
		DiscountValue: p.DiscountValue,
		ValidFrom:     from,
		ValidTo:       to,
	}, nil
}

// Models converts active resources to the engine model.
func (c *ResourcesConfig) Models() []model.Resource {
	out := make([]model.Resource, 0, len(c.Resources))
	for _, r := range c.Resources {
		if !r.IsActive {
			continue
		}
		res := model.Resource{ID: r.ID, Kind: model.ResourceKind(r.Kind), Name: r.Name}
		if res.Kind == "" {
			res.Kind = model.KindCourt
		}
		for _, w := range r.Schedule {
			win := model.WeeklyWindow{Start: w.Start, End: w.End}
			for _, d := range w.Days {
				// 1=Mon..7=Sun to Go's 0=Sun
				win.Days = append(win.Days, time.Weekday(d%7))
			}
			res.Schedule = append(res.Schedule, win)
		}
		for _, p := range r.Promotions {
			// validated on load
			promo, _ := p.toModel(r.ID)
			res.Promotions = append(res.Promotions, promo)
		}
		out = append(out, res)
	}
	return out
}

// ByID returns the resource config with the given id.
func (c *ResourcesConfig) ByID(id string) *ResourceConfig {
	for i := range c.Resources {
		if c.Resources[i].ID == id {
			return &c.Resources[i]
		}
	}
	return nil
}

// String returns a summary of the configuration.
func (c *ResourcesConfig) String() string {
	active := 0
	for _, r := range c.Resources {
		if r.IsActive {
			active++
		}
	}
	return fmt.Sprintf("ResourcesConfig: %d resources (%d active)", len(c.Resources), active)
}
