package asgard

import (
	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/caarlos0/env/v11"
	"go.trai.ch/zerr"
)

const (
	EngineGoja = "goja"
	EngineNode = "node"
)

// Config is the environment and file facing configuration of a Renderer.
type Config struct {
	Resources   string `env:"ASGARD_RESOURCES"    envDefault:"."            mapstructure:"resources"`
	NodeModules string `env:"ASGARD_NODE_MODULES" envDefault:"node_modules" mapstructure:"node_modules"`
	Mode        string `env:"ASGARD_MODE"         envDefault:"development"  mapstructure:"mode"`
	Engine      string `env:"ASGARD_ENGINE"       envDefault:"goja"         mapstructure:"engine"`
	Node        string `env:"ASGARD_NODE"         envDefault:"node"         mapstructure:"node"`
	ViewExt     string `env:"ASGARD_VIEW_EXT"     envDefault:".vue"         mapstructure:"view_ext"`
	Concurrency int    `env:"ASGARD_CONCURRENCY"                            mapstructure:"concurrency"`
}

// LoadConfig reads the ASGARD_* environment variables.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, zerr.Wrap(err, "error parsing environment")
	}
	return cfg, nil
}

func DefaultConfig() Config {
	return Config{
		Resources:   ".",
		NodeModules: "node_modules",
		Mode:        string(core.ModeDevelopment),
		Engine:      EngineGoja,
		Node:        "node",
		ViewExt:     core.DefaultViewExt,
	}
}

func (c Config) Validate() error {
	if c.Resources == "" {
		return zerr.Wrap(core.ErrInvalidConfig, "resources directory is required")
	}
	if _, err := core.ParseMode(c.Mode); err != nil {
		return err
	}
	switch c.Engine {
	case "", EngineGoja, EngineNode:
	default:
		return zerr.With(zerr.Wrap(core.ErrInvalidConfig, "unknown engine"), "engine", c.Engine)
	}
	return nil
}
