// Package config loads the YAML description of an agent graph used by the
// agentrelay command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the root of an agents file.
type Config struct {
	Model      ModelConfig   `yaml:"model"`
	MaxTurns   int           `yaml:"max_turns"`
	LogLevel   string        `yaml:"log_level"`
	MCPServers []MCPServer   `yaml:"mcp_servers"`
	Agents     []Agent       `yaml:"agents"`
	Session    SessionConfig `yaml:"session"`
}

// ModelConfig selects a model provider and model id.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// MCPServer describes a remote tool server reachable over streamable HTTP
// (URL) or stdio (Command).
type MCPServer struct {
	Name            string            `yaml:"name"`
	URL             string            `yaml:"url"`
	Headers         map[string]string `yaml:"headers"`
	Command         string            `yaml:"command"`
	Args            []string          `yaml:"args"`
	Env             []string          `yaml:"env"`
	RequireApproval bool              `yaml:"require_approval"`
	ApprovalTools   []string          `yaml:"approval_tools"`
	AllowedTools    []string          `yaml:"allowed_tools"`
}

// Agent declares one agent of the graph. Handoffs, agent tools and MCP
// servers refer to other entries by name; Tools name built-in tools.
type Agent struct {
	Name               string       `yaml:"name"`
	Instructions       string       `yaml:"instructions"`
	HandoffDescription string       `yaml:"handoff_description"`
	Handoffs           []string     `yaml:"handoffs"`
	AgentTools         []string     `yaml:"agent_tools"`
	Tools              []string     `yaml:"tools"`
	MCPServers         []string     `yaml:"mcp_servers"`
	Model              *ModelConfig `yaml:"model"`
}

// SessionConfig points at the SQLite file holding conversations.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// LoadEnv loads dotenv files into the process environment. Missing files are
// ignored; variables already set are not overridden.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads, expands and validates the agents file at path.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes a YAML document after expanding ${VAR} references from the
// environment.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config is empty")
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("parse config: expected single document")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderOpenAI
	}
	c.Model.Provider = strings.ToLower(c.Model.Provider)
	if c.MaxTurns <= 0 {
		c.MaxTurns = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	for i := range c.Agents {
		if m := c.Agents[i].Model; m != nil {
			if m.Provider == "" {
				m.Provider = c.Model.Provider
			}
			m.Provider = strings.ToLower(m.Provider)
		}
	}
}

// Validate checks that names are unique and every reference resolves.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Agents) == 0 {
		errs = append(errs, errors.New("at least one agent is required"))
	}

	if err := validateProvider(c.Model.Provider); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}

	servers := map[string]bool{}
	for i, s := range c.MCPServers {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("mcp_servers[%d]: name is required", i))
		case servers[s.Name]:
			errs = append(errs, fmt.Errorf("mcp_servers[%d]: duplicate name %q", i, s.Name))
		}
		if (s.URL == "") == (s.Command == "") {
			errs = append(errs, fmt.Errorf("mcp_servers[%d]: exactly one of url or command is required", i))
		}
		servers[s.Name] = true
	}

	agents := map[string]bool{}
	for i, a := range c.Agents {
		switch {
		case a.Name == "":
			errs = append(errs, fmt.Errorf("agents[%d]: name is required", i))
		case agents[a.Name]:
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate name %q", i, a.Name))
		}
		agents[a.Name] = true
	}

	for _, a := range c.Agents {
		for _, h := range a.Handoffs {
			if !agents[h] {
				errs = append(errs, fmt.Errorf("agent %q: unknown handoff target %q", a.Name, h))
			}
		}
		for _, t := range a.AgentTools {
			if !agents[t] {
				errs = append(errs, fmt.Errorf("agent %q: unknown agent tool %q", a.Name, t))
			}
		}
		for _, s := range a.MCPServers {
			if !servers[s] {
				errs = append(errs, fmt.Errorf("agent %q: unknown mcp server %q", a.Name, s))
			}
		}
		if a.Model != nil {
			if err := validateProvider(a.Model.Provider); err != nil {
				errs = append(errs, fmt.Errorf("agent %q: model: %w", a.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

func validateProvider(p string) error {
	switch p {
	case ProviderOpenAI, ProviderAnthropic:
		return nil
	default:
		return fmt.Errorf("unsupported provider %q", p)
	}
}

// Agent returns the agent declaration with the given name.
func (c *Config) Agent(name string) (Agent, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// MCPServer returns the server declaration with the given name.
func (c *Config) MCPServer(name string) (MCPServer, bool) {
	for _, s := range c.MCPServers {
		if s.Name == name {
			return s, true
		}
	}
	return MCPServer{}, false
}
