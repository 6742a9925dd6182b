package agent

import (
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the run's ambient value.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// Text creates an Instruction from a static string.
func Text(text string) Instruction { return Instruction{text: text} }

// Dynamic creates an Instruction evaluated against the RunContext each turn.
func Dynamic(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// FromProvider creates an Instruction from a Provider implementation.
func FromProvider(p Provider) Instruction { return Instruction{provider: p} }

// Template creates an Instruction rendered with text/template against the
// run's ambient value, e.g. "Help {{.Name}} with their order.".
func Template(text string) Instruction {
	return Dynamic(func(rc *core.RunContext) (string, error) {
		return util.RenderTemplate(text, rc.Value())
	})
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether no instruction was configured.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}
	return i.text, nil
}
