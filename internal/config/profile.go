package config

import (
	"embed"
	"fmt"

	"github.com/wolfeidau/sitepack/internal/pipeline"
)

//go:embed profiles/*.yaml
var profiles embed.FS

// Profile parses a built-in profile by mode name.
func Profile(mode string) (*File, error) {
	data, err := profiles.ReadFile("profiles/" + mode + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: no built-in profile for mode %q", pipeline.ErrInvalidConfig, mode)
	}
	return Parse(data, ".yaml")
}

// Development returns the development profile resolved against context.
func Development(context string) (*pipeline.Config, error) {
	return profileConfig(pipeline.ModeDevelopment, context)
}

// Production returns the production profile resolved against context.
func Production(context string) (*pipeline.Config, error) {
	return profileConfig(pipeline.ModeProduction, context)
}

func profileConfig(mode pipeline.Mode, context string) (*pipeline.Config, error) {
	f, err := Profile(string(mode))
	if err != nil {
		return nil, err
	}
	f.Context = context
	return f.Config("")
}
