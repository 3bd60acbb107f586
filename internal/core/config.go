package core

import (
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"sync"

	"go.trai.ch/zerr"
)

type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDevelopment, ModeProduction:
		return Mode(s), nil
	case "":
		return ModeDevelopment, nil
	}
	return "", zerr.With(zerr.Wrap(ErrInvalidConfig, "unknown mode"), "mode", s)
}

type Target string

const (
	TargetServer Target = "server"
	TargetClient Target = "client"
)

type Platform string

const (
	PlatformNode    Platform = "node"
	PlatformBrowser Platform = "browser"
)

type Format string

const (
	FormatCommonJS Format = "cjs"
	FormatIIFE     Format = "iife"
)

// Loader names understood by the bundler.
const (
	LoaderSFC   = "sfc"
	LoaderJS    = "js"
	LoaderStyle = "style"
	LoaderText  = "text"
	LoaderJSON  = "json"
)

const PluginSFC = "sfc"

type Rule struct {
	Test   string `mapstructure:"test" json:"test"`
	Loader string `mapstructure:"loader" json:"loader"`
}

var ruleCache sync.Map

func (r Rule) Match(path string) bool {
	re, err := r.regexp()
	if err != nil {
		return false
	}
	return re.MatchString(filepath.ToSlash(path))
}

func (r Rule) regexp() (*regexp.Regexp, error) {
	if cached, ok := ruleCache.Load(r.Test); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(r.Test)
	if err != nil {
		return nil, err
	}
	ruleCache.Store(r.Test, re)
	return re, nil
}

// BuildConfig describes one bundler invocation for one target.
type BuildConfig struct {
	Target     Target            `mapstructure:"target" json:"target,omitempty"`
	Mode       Mode              `mapstructure:"mode" json:"mode,omitempty"`
	Platform   Platform          `mapstructure:"platform" json:"platform,omitempty"`
	Format     Format            `mapstructure:"format" json:"format,omitempty"`
	Entry      string            `mapstructure:"entry" json:"entry,omitempty"`
	OutputDir  string            `mapstructure:"output_dir" json:"outputDir,omitempty"`
	OutputFile string            `mapstructure:"output_file" json:"outputFile,omitempty"`
	Define     map[string]string `mapstructure:"define" json:"define,omitempty"`
	Alias      map[string]string `mapstructure:"alias" json:"alias,omitempty"`
	Resolve    []string          `mapstructure:"resolve" json:"resolve,omitempty"`
	Rules      []Rule            `mapstructure:"rules" json:"rules,omitempty"`
	Plugins    []string          `mapstructure:"plugins" json:"plugins,omitempty"`
	External   []string          `mapstructure:"external" json:"external,omitempty"`
}

// Merge folds layers left to right. Non-zero scalars of a later layer
// replace earlier ones, slices are concatenated and map keys of a later
// layer win.
func Merge(layers ...BuildConfig) BuildConfig {
	var out BuildConfig
	for _, l := range layers {
		if l.Target != "" {
			out.Target = l.Target
		}
		if l.Mode != "" {
			out.Mode = l.Mode
		}
		if l.Platform != "" {
			out.Platform = l.Platform
		}
		if l.Format != "" {
			out.Format = l.Format
		}
		if l.Entry != "" {
			out.Entry = l.Entry
		}
		if l.OutputDir != "" {
			out.OutputDir = l.OutputDir
		}
		if l.OutputFile != "" {
			out.OutputFile = l.OutputFile
		}
		out.Define = mergeMap(out.Define, l.Define)
		out.Alias = mergeMap(out.Alias, l.Alias)
		out.Resolve = appendUnique(out.Resolve, l.Resolve...)
		out.Rules = append(out.Rules, l.Rules...)
		out.Plugins = appendUnique(out.Plugins, l.Plugins...)
		out.External = appendUnique(out.External, l.External...)
	}
	return out
}

func mergeMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	maps.Copy(dst, src)
	return dst
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		seen := false
		for _, d := range dst {
			if d == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}

func (c BuildConfig) OutputPath() string {
	return filepath.Join(c.OutputDir, filepath.FromSlash(c.OutputFile))
}

// LoaderFor returns the loader of the last rule matching path, so rules
// appended by a later layer override the defaults.
func (c BuildConfig) LoaderFor(path string) (string, bool) {
	for i := len(c.Rules) - 1; i >= 0; i-- {
		if c.Rules[i].Match(path) {
			return c.Rules[i].Loader, true
		}
	}
	return "", false
}

func (c BuildConfig) HasPlugin(name string) bool {
	for _, p := range c.Plugins {
		if p == name {
			return true
		}
	}
	return false
}

// Validate only rejects what would keep the bundler from starting.
func (c BuildConfig) Validate() error {
	if c.Entry == "" {
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "entry is required"), "target", string(c.Target))
	}
	if c.OutputDir == "" || c.OutputFile == "" {
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "output path is required"), "target", string(c.Target))
	}
	for _, r := range c.Rules {
		if _, err := r.regexp(); err != nil {
			return zerr.With(zerr.Wrap(ErrInvalidConfig, fmt.Sprintf("rule %q does not compile: %v", r.Test, err)), "target", string(c.Target))
		}
		if r.Loader == "" {
			return zerr.With(zerr.Wrap(ErrInvalidConfig, fmt.Sprintf("rule %q has no loader", r.Test)), "target", string(c.Target))
		}
	}
	return nil
}

// CommonConfig is shared by both targets.
func CommonConfig() BuildConfig {
	return BuildConfig{
		Rules: []Rule{
			{Test: `\.vue$`, Loader: LoaderSFC},
			{Test: `\.js$`, Loader: LoaderJS},
			{Test: `\.css$`, Loader: LoaderStyle},
		},
		Plugins: []string{PluginSFC},
		Alias: map[string]string{
			"vue": "vue/dist/vue.common.js",
		},
	}
}

func ServerConfig() BuildConfig {
	return BuildConfig{
		Target:   TargetServer,
		Platform: PlatformNode,
		Format:   FormatCommonJS,
		Define: map[string]string{
			"process.env.VUE_ENV": `"server"`,
		},
	}
}

func ClientConfig() BuildConfig {
	return BuildConfig{
		Target:   TargetClient,
		Platform: PlatformBrowser,
		Format:   FormatIIFE,
		Define: map[string]string{
			"process.env.VUE_ENV": `"client"`,
		},
	}
}

// InstanceConfig carries the per-renderer settings: mode, module search
// roots and the output directory.
func InstanceConfig(mode Mode, resources, nodeModules, importsDir string) BuildConfig {
	return BuildConfig{
		Mode:      mode,
		OutputDir: resources,
		Resolve:   []string{resources, nodeModules, importsDir},
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", string(mode)),
		},
	}
}

// BuildPlan is the composed configuration for one view.
type BuildPlan struct {
	Key     string
	Bundles BundlePaths
	Configs [2]BuildConfig
}

func (p BuildPlan) Server() BuildConfig { return p.Configs[0] }
func (p BuildPlan) Client() BuildConfig { return p.Configs[1] }

// ComposeBuildPlan layers common, target and instance settings and points
// each target at its synthesized entry and bundle output.
func ComposeBuildPlan(key string, entries EntryPaths, common, server, client, instance BuildConfig) BuildPlan {
	outputFile := func(suffix string) string { return key + suffix }

	s := Merge(common, server, instance)
	s.Target = TargetServer
	s.Entry = entries.Server
	s.OutputFile = outputFile(ServerBundleSuffix)

	c := Merge(common, client, instance)
	c.Target = TargetClient
	c.Entry = entries.Client
	c.OutputFile = outputFile(ClientBundleSuffix)

	return BuildPlan{
		Key:     key,
		Bundles: BundlePathsFor(instance.OutputDir, key),
		Configs: [2]BuildConfig{s, c},
	}
}
