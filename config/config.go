// Package config loads a declarative unit-space description from YAML and
// builds the corresponding registry. It is the wiring layer: code that wants
// programmatic control can skip it entirely and register units directly.
package config

import (
	"context"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/flowmesh/agent"
	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/flow"
	"github.com/hupe1980/flowmesh/model"
	"github.com/hupe1980/flowmesh/model/anthropic"
	"github.com/hupe1980/flowmesh/model/openai"
	"github.com/hupe1980/flowmesh/registry"
	"github.com/hupe1980/flowmesh/tool"
	mcptool "github.com/hupe1980/flowmesh/tool/mcp"
)

// Config is the root of a unit-space description.
type Config struct {
	// Master names the default entry unit.
	Master string `yaml:"master"`

	Units []UnitConfig `yaml:"units"`
}

// UnitConfig declares one unit. Which fields apply depends on Kind (and,
// for flows, Strategy).
type UnitConfig struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"` // tool | model | agent | flow | mcp
	Description string `yaml:"description,omitempty"`

	// Tool fields.
	Handler string `yaml:"handler,omitempty"` // key into the handler table

	// Model fields.
	Provider    string `yaml:"provider,omitempty"` // mock | openai | anthropic
	Model       string `yaml:"model,omitempty"`
	MaxInFlight int64  `yaml:"max_in_flight,omitempty"`

	// Agent fields.
	Instructions string `yaml:"instructions,omitempty"`

	// Flow fields.
	Strategy      string   `yaml:"strategy,omitempty"` // delegate | fanout | plan | critique
	Callee        string   `yaml:"callee,omitempty"`
	Callees       []string `yaml:"callees,omitempty"`
	Strict        bool     `yaml:"strict,omitempty"`
	Executor      string   `yaml:"executor,omitempty"`
	Planner       string   `yaml:"planner,omitempty"`
	Replanner     string   `yaml:"replanner,omitempty"`
	Plan          []string `yaml:"plan,omitempty"`
	MaxRounds     int      `yaml:"max_rounds,omitempty"`
	Drafter       string   `yaml:"drafter,omitempty"`
	Critic        string   `yaml:"critic,omitempty"`
	Improver      string   `yaml:"improver,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty"`

	// MCP fields.
	Transport string   `yaml:"transport,omitempty"` // stdio | streamable-http
	Command   string   `yaml:"command,omitempty"`
	Args      []string `yaml:"args,omitempty"`
	Env       []string `yaml:"env,omitempty"`
	URL       string   `yaml:"url,omitempty"`
}

// BuildOptions supply the runtime-side inputs a YAML file cannot express.
type BuildOptions struct {
	// Handlers maps handler keys referenced by tool units to Go functions.
	Handlers map[string]tool.Handler

	// Generators overrides provider construction per model unit name.
	// Useful for tests and custom providers.
	Generators map[string]model.Generator
}

// Load parses a unit-space description from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a unit-space description from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	return &cfg, nil
}

// Build populates a registry from the description. Duplicate names and
// unresolved references surface as errors here, before anything runs.
func (c *Config) Build(ctx context.Context, optFns ...func(o *BuildOptions)) (*registry.Registry, error) {
	opts := BuildOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	reg := registry.New()
	for _, uc := range c.Units {
		if uc.Kind == "mcp" {
			bundle, err := buildBundle(uc)
			if err != nil {
				return nil, err
			}
			if err := reg.Expand(ctx, bundle); err != nil {
				return nil, err
			}
			continue
		}

		unit, err := buildUnit(uc, opts)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(unit); err != nil {
			return nil, err
		}
	}

	if c.Master != "" {
		if _, ok := reg.Get(c.Master); !ok {
			return nil, fmt.Errorf("config: master %q is not a declared unit", c.Master)
		}
	}

	return reg, nil
}

func buildUnit(uc UnitConfig, opts BuildOptions) (core.Unit, error) {
	switch uc.Kind {
	case "tool":
		handler, ok := opts.Handlers[uc.Handler]
		if !ok {
			return nil, fmt.Errorf("config: tool %q references unknown handler %q", uc.Name, uc.Handler)
		}
		return tool.NewFunctionTool(uc.Name, uc.Description, handler), nil

	case "model":
		gen, err := buildGenerator(uc, opts)
		if err != nil {
			return nil, err
		}
		var endpointOpts []func(o *model.EndpointOptions)
		if uc.MaxInFlight > 0 {
			endpointOpts = append(endpointOpts, model.WithMaxInFlight(uc.MaxInFlight))
		}
		return model.NewEndpoint(uc.Name, gen, endpointOpts...), nil

	case "agent":
		if uc.Model == "" {
			return nil, fmt.Errorf("config: agent %q declares no model", uc.Name)
		}
		var agentOpts []func(o *agent.ChatOptions)
		if uc.Instructions != "" {
			agentOpts = append(agentOpts, agent.WithInstructions(uc.Instructions))
		}
		if uc.Description != "" {
			agentOpts = append(agentOpts, agent.WithDescription(uc.Description))
		}
		return agent.NewChatAgent(uc.Name, uc.Model, agentOpts...), nil

	case "flow":
		return buildFlow(uc)

	default:
		return nil, fmt.Errorf("config: unit %q has unknown kind %q", uc.Name, uc.Kind)
	}
}

func buildGenerator(uc UnitConfig, opts BuildOptions) (model.Generator, error) {
	if gen, ok := opts.Generators[uc.Name]; ok {
		return gen, nil
	}

	switch uc.Provider {
	case "mock":
		return model.NewMockGenerator(uc.Model), nil
	case "openai":
		return openai.NewGenerator(func(o *openai.Options) {
			if uc.Model != "" {
				o.Model = uc.Model
			}
		}), nil
	case "anthropic":
		return anthropic.NewGenerator(func(o *anthropic.Options) {
			if uc.Model != "" {
				o.Model = anthropicsdk.Model(uc.Model)
			}
		}), nil
	default:
		return nil, fmt.Errorf("config: model %q has unknown provider %q", uc.Name, uc.Provider)
	}
}

func buildFlow(uc UnitConfig) (core.Unit, error) {
	switch uc.Strategy {
	case "delegate":
		if uc.Callee == "" {
			return nil, fmt.Errorf("config: delegate flow %q declares no callee", uc.Name)
		}
		return flow.NewDelegateFlow(uc.Name, uc.Callee), nil

	case "fanout":
		var fanOpts []flow.FanOutOption
		if uc.Strict {
			fanOpts = append(fanOpts, flow.WithStrictFailures())
		}
		return flow.NewFanOutFlow(uc.Name, uc.Callees, fanOpts...), nil

	case "plan":
		if uc.Executor == "" {
			return nil, fmt.Errorf("config: plan flow %q declares no executor", uc.Name)
		}
		var planOpts []flow.PlanExecuteOption
		if uc.Planner != "" {
			planOpts = append(planOpts, flow.WithPlanner(uc.Planner))
		}
		if len(uc.Plan) > 0 {
			planOpts = append(planOpts, flow.WithPresetPlan(uc.Plan...))
		}
		if uc.Replanner != "" {
			planOpts = append(planOpts, flow.WithReplanner(uc.Replanner))
		}
		if uc.MaxRounds > 0 {
			planOpts = append(planOpts, flow.WithMaxReplanRounds(uc.MaxRounds))
		}
		return flow.NewPlanExecuteFlow(uc.Name, uc.Executor, planOpts...), nil

	case "critique":
		if uc.Drafter == "" || uc.Critic == "" {
			return nil, fmt.Errorf("config: critique flow %q needs a drafter and a critic", uc.Name)
		}
		var critOpts []flow.CritiqueOption
		if uc.Improver != "" {
			critOpts = append(critOpts, flow.WithImprover(uc.Improver))
		}
		if uc.MaxIterations > 0 {
			critOpts = append(critOpts, flow.WithMaxIterations(uc.MaxIterations))
		}
		return flow.NewCritiqueFlow(uc.Name, uc.Drafter, uc.Critic, critOpts...), nil

	default:
		return nil, fmt.Errorf("config: flow %q has unknown strategy %q", uc.Name, uc.Strategy)
	}
}

func buildBundle(uc UnitConfig) (*mcptool.Bundle, error) {
	switch uc.Transport {
	case "stdio", "":
		if uc.Command == "" {
			return nil, fmt.Errorf("config: mcp bundle %q declares no command", uc.Name)
		}
		return mcptool.NewStdioBundle(uc.Name, uc.Command, uc.Env, uc.Args)
	case "streamable-http":
		if uc.URL == "" {
			return nil, fmt.Errorf("config: mcp bundle %q declares no url", uc.Name)
		}
		return mcptool.NewStreamableHTTPBundle(uc.Name, uc.URL)
	default:
		return nil, fmt.Errorf("config: mcp bundle %q has unknown transport %q", uc.Name, uc.Transport)
	}
}
