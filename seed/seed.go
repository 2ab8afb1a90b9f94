// Package seed loads permissions and resource records from a YAML fixture
// and writes them through the engine.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/xraph/gatekeeper"
	"github.com/xraph/gatekeeper/resource"
)

// Document is the fixture layout.
type Document struct {
	Permissions []Permission      `yaml:"permissions"`
	Resources   []resource.Record `yaml:"resources"`
}

// Permission is one permission entry. Condition values are kept as text and
// typed the same way stored conditions are.
type Permission struct {
	Creator    uuid.UUID   `yaml:"creator_id"`
	Subject    string      `yaml:"subject"`
	Object     string      `yaml:"object"`
	Action     string      `yaml:"action"`
	Conditions []Condition `yaml:"conditions"`
}

// Condition is one condition entry.
type Condition struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// LoadFromFile reads and validates the fixture at path.
func LoadFromFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates a fixture.
func Parse(b []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks every resource record and every condition. Selector
// grammar is checked again by the engine when the permission is created.
func Validate(d *Document) error {
	for i, r := range d.Resources {
		if !r.Kind.Known() {
			return fmt.Errorf("seed: resource %d: unknown kind %q", i, r.Kind)
		}
		if r.ID == uuid.Nil {
			return fmt.Errorf("seed: resource %d: id missing", i)
		}
	}
	for i, p := range d.Permissions {
		if strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.Object) == "" || strings.TrimSpace(p.Action) == "" {
			return fmt.Errorf("seed: permission %d: subject, object and action are required", i)
		}
		for _, c := range p.Conditions {
			if err := gatekeeper.ValidateCondition(c.Name, c.Value); err != nil {
				return fmt.Errorf("seed: permission %d: %w", i, err)
			}
		}
	}
	return nil
}

// Apply writes the resources to the engine's store, then creates every
// permission through the engine. It stops at the first failure.
func Apply(ctx context.Context, eng *gatekeeper.Engine, d *Document) error {
	for i := range d.Resources {
		if err := eng.Store().PutResource(ctx, &d.Resources[i]); err != nil {
			return fmt.Errorf("seed: resource %s %s: %w", d.Resources[i].Kind, d.Resources[i].ID, err)
		}
	}
	for i, p := range d.Permissions {
		np := &gatekeeper.NewPermission{
			CreatorID: p.Creator,
			Subject:   p.Subject,
			Object:    p.Object,
			Action:    p.Action,
		}
		for _, c := range p.Conditions {
			np.Conditions = append(np.Conditions, gatekeeper.NewCondition{Name: c.Name, Value: c.Value})
		}
		if _, err := eng.CreatePermission(ctx, np); err != nil {
			return fmt.Errorf("seed: permission %d: %w", i, err)
		}
	}
	return nil
}
