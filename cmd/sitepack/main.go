package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/sitepack/cmd/sitepack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"SITEPACK_DEBUG"`
		Version kong.VersionFlag
		Build   commands.BuildCmd `cmd:"" help:"Build the site into the output directory"`
		Plan    commands.PlanCmd  `cmd:"" help:"Print the resolved build plan as JSON without writing"`
		Serve   commands.ServeCmd `cmd:"" help:"Build the site and serve the output directory"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("sitepack"),
		kong.Description("Resolve and build static site assets."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
