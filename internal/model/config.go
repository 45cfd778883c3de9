// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model holds the typed data model for a forjar config document:
// machines, resources, recipes, policy, plans, locks, and events, plus the
// YAML decode and structural validation that turns raw documents into this
// model.
package model

// SchemaVersion is the only accepted value of a config document's top-level
// "version" field.
const SchemaVersion = "1.0"

// Config is the top-level config document (spec.md §3, "Config document").
type Config struct {
	Version     string            `yaml:"version"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Params      map[string]string `yaml:"params,omitempty"`
	Machines    map[string]Machine
	Resources   map[string]Resource
	Policy      *Policy `yaml:"policy,omitempty"`

	// MachineOrder preserves the mapping's source order from the YAML
	// document, since spec.md §9 pins multi-machine apply order to
	// config-declaration order and Go map iteration is unordered.
	MachineOrder []string `yaml:"-"`
	// ResourceOrder holds the resources mapping's source order after
	// decoding; compile.Config replaces it with the sorted post-expansion
	// ids. Not itself an ordering guarantee (the resolver re-orders by DAG
	// topology), but keeps parse/validate diagnostics deterministic.
	ResourceOrder []string `yaml:"-"`

	// SecretValues holds the resolved string values of every recipe input
	// declared secret (recipe.InputSpec.Secret), collected during recipe
	// expansion. Never round-tripped to YAML; the executor uses it to
	// redact captured stderr before it reaches an event or log line.
	SecretValues []string `yaml:"-"`
}

// Machine is a convergence target (spec.md §3, "Machine").
type Machine struct {
	ID         string   `yaml:"-"`
	Hostname   string   `yaml:"hostname"`
	Addr       string   `yaml:"addr"`
	User       string   `yaml:"user,omitempty"`
	Arch       string   `yaml:"arch,omitempty"`
	SSHKey     string   `yaml:"ssh_key,omitempty"`
	Roles      []string `yaml:"roles,omitempty"`
}

// DefaultUser is applied when a machine omits "user".
const DefaultUser = "root"

// DefaultArch is applied when a machine omits "arch".
const DefaultArch = "x86_64"

// IsLocal reports whether the machine's address designates the local shell
// transport rather than the remote (SSH) transport (spec.md §4.7).
func (m Machine) IsLocal() bool {
	return m.Addr == "127.0.0.1" || m.Addr == "localhost"
}

// EffectiveUser returns the configured user, or DefaultUser.
func (m Machine) EffectiveUser() string {
	if m.User == "" {
		return DefaultUser
	}
	return m.User
}

// Kind enumerates the resource kinds a config document can declare.
type Kind string

const (
	KindPackage Kind = "package"
	KindFile    Kind = "file"
	KindService Kind = "service"
	KindMount   Kind = "mount"
	KindRecipe  Kind = "recipe"
)

// Resource is a single unit of desired state (spec.md §3, "Resource"). Only
// the fields relevant to its Kind are populated; the rest are zero-valued.
type Resource struct {
	ID         string   `yaml:"-"`
	Type       Kind     `yaml:"type"`
	Machine    MachineRef `yaml:"machine"`
	DependsOn  []string `yaml:"depends_on,omitempty"`

	// package
	Provider string   `yaml:"provider,omitempty"`
	Packages []string `yaml:"packages,omitempty"`
	State    string   `yaml:"state,omitempty"`

	// file
	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`
	Source  string `yaml:"source,omitempty"`
	Target  string `yaml:"target,omitempty"`
	Owner   string `yaml:"owner,omitempty"`
	Group   string `yaml:"group,omitempty"`
	Mode    string `yaml:"mode,omitempty"`

	// service
	Name      string   `yaml:"name,omitempty"`
	Enabled   *bool    `yaml:"enabled,omitempty"`
	RestartOn []string `yaml:"restart_on,omitempty"`

	// mount
	FSType  string `yaml:"fstype,omitempty"`
	Options string `yaml:"options,omitempty"`

	// recipe
	RecipeSource string                 `yaml:"-"`
	Inputs       map[string]interface{} `yaml:"-"`
}

// MachineRef is a resource's "machine" field: either a single id or a
// sequence of ids (spec.md §3, "Resource").
type MachineRef struct {
	IDs []string
}

// Policy controls failure handling and persistence behavior for an apply
// (spec.md §3, "Policy").
type Policy struct {
	FailureMode     FailureMode `yaml:"failure_mode,omitempty"`
	TripwireEnabled bool        `yaml:"tripwire_enabled,omitempty"`
	LockFileEnabled *bool       `yaml:"lock_file_enabled,omitempty"`
}

// FailureMode enumerates the executor's failure-handling policies.
type FailureMode string

const (
	FailureStopOnFirst        FailureMode = "stop_on_first"
	FailureContinueIndependent FailureMode = "continue_independent"
)

// EffectiveFailureMode returns the configured failure mode, defaulting to
// stop_on_first per spec.md §3 "Policy".
func (p *Policy) EffectiveFailureMode() FailureMode {
	if p == nil || p.FailureMode == "" {
		return FailureStopOnFirst
	}
	return p.FailureMode
}

// LockEnabled reports whether lock-file persistence is enabled, defaulting
// to true.
func (p *Policy) LockEnabled() bool {
	if p == nil || p.LockFileEnabled == nil {
		return true
	}
	return *p.LockFileEnabled
}

// Tripwire reports whether tripwire (non-zero exit on drift) is enabled.
func (p *Policy) Tripwire() bool {
	return p != nil && p.TripwireEnabled
}
