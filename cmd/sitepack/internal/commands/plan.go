package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/sitepack/internal/logger"
	"github.com/wolfeidau/sitepack/internal/pipeline"
	"github.com/wolfeidau/sitepack/internal/transform"
)

type PlanCmd struct {
	ConfigFlags `embed:""`

	Paths bool `help:"print only artifact paths" default:"false"`
}

func (c *PlanCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	cfg, err := c.load()
	if err != nil {
		return err
	}

	registry := transform.DefaultRegistry(c.Sass)
	defer registry.Close()

	resolver := &pipeline.Resolver{Registry: registry, Concurrency: c.Concurrency}
	plan, err := resolver.Resolve(ctx, cfg)
	if err != nil {
		return err
	}

	return printPlan(os.Stdout, plan, c.Paths)
}

func printPlan(w io.Writer, plan *pipeline.BuildPlan, paths bool) error {
	if paths {
		for _, p := range plan.Paths() {
			if _, err := fmt.Fprintln(w, p); err != nil {
				return err
			}
		}
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("failed to encode build plan: %w", err)
	}
	return nil
}
