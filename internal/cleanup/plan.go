package cleanup

import (
	"sort"

	"docsweep/internal/manifest"
)

// Target is one entry of the deletion set
type Target struct {
	Name     string // relative to the base directory
	Category string // empty for helper files
	Helper   bool
}

// Plan is the ordered deletion set: manifest files sorted by name, then
// helper files in their configured order. Duplicates are kept.
type Plan struct {
	Manifest *manifest.Manifest
	Targets  []Target
	helpers  int
}

// BuildPlan computes the deletion set for m and the configured helper files
func BuildPlan(m *manifest.Manifest, helpers []string) *Plan {
	targets := make([]Target, 0, m.FileCount()+len(helpers))
	for _, c := range m.Categories {
		for _, f := range c.Files {
			targets = append(targets, Target{Name: f, Category: c.Name})
		}
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Name < targets[j].Name
	})

	for _, h := range helpers {
		targets = append(targets, Target{Name: h, Helper: true})
	}

	return &Plan{Manifest: m, Targets: targets, helpers: len(helpers)}
}

func (p *Plan) Len() int { return len(p.Targets) }

func (p *Plan) ManifestCount() int { return len(p.Targets) - p.helpers }

func (p *Plan) HelperCount() int { return p.helpers }

// ManifestTargets returns the targets taken from the manifest
func (p *Plan) ManifestTargets() []Target { return p.Targets[:p.ManifestCount()] }

// HelperTargets returns the helper file targets
func (p *Plan) HelperTargets() []Target { return p.Targets[p.ManifestCount():] }

// Names returns every target name in execution order
func (p *Plan) Names() []string {
	out := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		out[i] = t.Name
	}
	return out
}
