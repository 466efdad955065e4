// Package orchestrator defines the named build targets and runs them.
//
// Every target compiles into its own immutable task graph when the registry is
// built. Running a target never changes a graph; the build mode only selects
// optional work inside the actions.
package orchestrator

import (
	"fmt"
	"slices"

	"github.com/sugarshin/frrr-boilerplate/internal/assets"
	"github.com/sugarshin/frrr-boilerplate/internal/config"
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
	tg "github.com/sugarshin/frrr-boilerplate/internal/taskgraph"
)

// Graph is a task graph over the build configuration.
type Graph = tg.Graph[*config.Config]

// Target is a named entry point.
type Target struct {
	Name        string
	Description string
	Graph       *Graph
	// Mode, when set, overrides the configured build mode for the whole run.
	Mode config.Mode
}

// Registry holds the compiled targets.
type Registry struct {
	targets map[string]*Target
	names   []string
}

// Steps are the actions the targets are composed from.
type Steps struct {
	Clean             tg.Action[*config.Config]
	Images            tg.Action[*config.Config]
	Stylesheets       tg.Action[*config.Config]
	BundleDev         tg.Action[*config.Config]
	BundleBuild       tg.Action[*config.Config]
	PrecompileScripts tg.Action[*config.Config]
}

// PipelineSteps adapts the asset pipeline to task actions.
func PipelineSteps(p *assets.Pipeline) Steps {
	return Steps{
		Clean:             tg.Func(p.Clean),
		Images:            tg.Func(p.Images),
		Stylesheets:       tg.Func(p.Stylesheets),
		BundleDev:         tg.Func(p.Scripts(assets.BundleDev)),
		BundleBuild:       tg.Func(p.Scripts(assets.BundleBuild)),
		PrecompileScripts: tg.Func(p.PrecompileScripts),
	}
}

// DefaultComposition is the development pre-build: clean, then images, then
// development bundles and stylesheets concurrently.
func DefaultComposition(s Steps) tg.Node[*config.Config] {
	return tg.Series(
		tg.Run(assets.StepClean, s.Clean),
		tg.Run(assets.StepImages, s.Images),
		tg.Parallel(
			tg.Run(assets.StepBundleDev, s.BundleDev),
			tg.Run(assets.StepStylesheets, s.Stylesheets),
		),
	)
}

// BuildComposition is the production build. build:js depends on every member of
// the concurrent group, so bundling always finishes before fingerprinting.
func BuildComposition(s Steps) tg.Node[*config.Config] {
	return tg.Series(
		tg.Run(assets.StepClean, s.Clean),
		tg.Parallel(
			tg.Run(assets.StepImages, s.Images),
			tg.Run(assets.StepStylesheets, s.Stylesheets),
			tg.Run(assets.StepBundleBuild, s.BundleBuild),
		),
		tg.Run(assets.StepScripts, s.PrecompileScripts),
	)
}

// NewRegistry compiles every target from steps.
func NewRegistry(s Steps) (*Registry, error) {
	defs := []struct {
		name, desc string
		mode       config.Mode
		node       tg.Node[*config.Config]
	}{
		{assets.StepDefault, "clean, images, then development scripts and stylesheets", "", DefaultComposition(s)},
		{assets.StepBuild, "production build with fingerprinted scripts", config.ModeProduction, BuildComposition(s)},
		{assets.StepClean, "remove and recreate the output directory", "", tg.Run(assets.StepClean, s.Clean)},
		{assets.StepImages, "copy images into the output directory", "", tg.Run(assets.StepImages, s.Images)},
		{assets.StepStylesheets, "compile stylesheet entries", "", tg.Run(assets.StepStylesheets, s.Stylesheets)},
		{assets.StepBundleDev, "bundle scripts unminified with source maps, in any mode", "", tg.Run(assets.StepBundleDev, s.BundleDev)},
		{assets.StepBundleBuild, "bundle scripts minified, in any mode", "", tg.Run(assets.StepBundleBuild, s.BundleBuild)},
		{assets.StepScripts, "fingerprint bundled scripts in place", "", tg.Run(assets.StepScripts, s.PrecompileScripts)},
	}

	r := &Registry{targets: make(map[string]*Target, len(defs))}
	for _, d := range defs {
		g, err := tg.Compile(d.node)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", d.name, err)
		}
		r.targets[d.name] = &Target{Name: d.name, Description: d.desc, Graph: g, Mode: d.mode}
		r.names = append(r.names, d.name)
	}
	return r, nil
}

// Lookup returns the target called name.
func (r *Registry) Lookup(name string) (*Target, error) {
	t, ok := r.targets[name]
	if !ok {
		return nil, ferrors.NewError(ferrors.CategoryNotFound, "unknown target").
			WithContext("target", name).
			WithContext("known", r.Names()).
			Build()
	}
	return t, nil
}

// Names lists target names in declaration order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }
