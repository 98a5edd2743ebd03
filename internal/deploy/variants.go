package deploy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Variant selects one of the two built-in pipelines
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantSeeded   Variant = "seeded"
)

// DefaultFixture is loaded by the seeded variant when no fixture is named
const DefaultFixture = "initial_data.json"

// ParseVariant accepts the variant name or its number
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "1":
		return VariantStandard, nil
	case "seeded", "2":
		return VariantSeeded, nil
	}
	return "", fmt.Errorf("unknown variant %q (expected standard|seeded)", s)
}

// CLI locates the management binary the steps call
type CLI struct {
	Program string
	Exec    Executor
	// Args precede every subcommand (global flags such as --env-file)
	Args []string
}

func (c CLI) step(name string, args ...string) Step {
	argv := append(append([]string{}, c.Args...), args...)
	return NewCommandStep(name, c.Exec, c.Program, argv...)
}

// Standard migrates and collects static files
func Standard(cli CLI) *Pipeline {
	return &Pipeline{
		Name: string(VariantStandard),
		Steps: []Step{
			cli.step("migrate", "migrate"),
			cli.step("collectstatic", "collectstatic", "--noinput"),
		},
	}
}

// Seeded loads the fixture between migration and static collection
func Seeded(cli CLI, fixture string) *Pipeline {
	if fixture == "" {
		fixture = DefaultFixture
	}
	return &Pipeline{
		Name: string(VariantSeeded),
		Steps: []Step{
			cli.step("migrate", "migrate"),
			cli.step("loaddata", "loaddata", fixture),
			cli.step("collectstatic", "collectstatic", "--noinput"),
		},
	}
}

// For builds the pipeline of a variant
func For(v Variant, cli CLI, fixture string) *Pipeline {
	if v == VariantSeeded {
		return Seeded(cli, fixture)
	}
	return Standard(cli)
}

type fileStep struct {
	Name string   `yaml:"name"`
	Run  []string `yaml:"run"`
}

type file struct {
	Name  string     `yaml:"name"`
	Steps []fileStep `yaml:"steps"`
}

// Parse reads a YAML pipeline definition:
//
//	name: release
//	steps:
//	  - name: migrate
//	    run: [clinicctl, migrate]
func Parse(b []byte, executor Executor) (*Pipeline, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("invalid pipeline yaml: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("pipeline %q has no steps", f.Name)
	}

	p := &Pipeline{Name: f.Name}
	for i, s := range f.Steps {
		if len(s.Run) == 0 || s.Run[0] == "" {
			return nil, fmt.Errorf("step %d: run must name a program", i+1)
		}
		name := s.Name
		if name == "" {
			name = s.Run[0]
		}
		p.Steps = append(p.Steps, NewCommandStep(name, executor, s.Run[0], s.Run[1:]...))
	}
	if p.Name == "" {
		p.Name = "custom"
	}
	return p, nil
}

// LoadFile reads a YAML pipeline definition from path
func LoadFile(path string, executor Executor) (*Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	p, err := Parse(b, executor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
