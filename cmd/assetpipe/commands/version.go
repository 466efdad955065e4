package commands

import (
	"context"
	"fmt"

	"github.com/sugarshin/frrr-boilerplate/internal/version"
)

// VersionCmd implements 'version'.
type VersionCmd struct{}

func (v *VersionCmd) Run(_ context.Context, g *Global, _ *CLI) error {
	_, err := fmt.Fprintln(g.Out, version.String())
	return err
}
