package commands

import (
	"context"
	"fmt"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

// InitCmd implements 'init'.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ context.Context, g *Global, root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "init failed").
			WithContext("path", root.Config).
			Build()
	}
	_, _ = fmt.Fprintf(g.Out, "Wrote configuration to %s\n", root.Config)
	return nil
}
