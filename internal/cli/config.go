package cli

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parsehook/mdstream/pkg/wire"
)

// ErrConfig wraps any --config read/parse failure so callers can map it
// to ExitConfigError without string-matching.
var ErrConfig = errors.New("cli: config error")

// FileConfig mirrors the subset of INIT's payload a --config file may
// supply as defaults, generalized from the teacher's pkg/config +
// internal/configloader env>flag>file>defaults merge pipeline. serve
// only ever has one file and one INIT message to merge, so the pipeline
// collapses to a single mergeInit call rather than the teacher's
// multi-source layering.
type FileConfig struct {
	DocPlugins   wire.DocPluginsConfig `yaml:"doc_plugins"`
	MDX          wire.MDXConfig        `yaml:"mdx"`
	PrewarmLangs []string              `yaml:"prewarm_langs"`
}

// loadFileConfig reads and parses a YAML config file. An empty path
// returns a zero-value FileConfig (all defaults).
func loadFileConfig(path string) (FileConfig, error) {
	var cfg FileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}
	return cfg, nil
}

// mergeInit fills zero-valued fields of payload from cfg, letting an
// explicit INIT message always win over file-supplied defaults.
func mergeInit(payload wire.InitPayload, cfg FileConfig) wire.InitPayload {
	if isZeroDocPlugins(payload.DocPlugins) {
		payload.DocPlugins = cfg.DocPlugins
	}
	if payload.MDX.CompileMode == "" {
		payload.MDX = cfg.MDX
	}
	if len(payload.PrewarmLangs) == 0 {
		payload.PrewarmLangs = cfg.PrewarmLangs
	}
	return payload
}

// isZeroDocPlugins reports whether no doc_plugins field was set on the
// incoming INIT message (DocPluginsConfig embeds a slice, so it isn't
// comparable with ==).
func isZeroDocPlugins(d wire.DocPluginsConfig) bool {
	return !d.Footnotes && !d.HTML && !d.MDX && !d.Tables && !d.Callouts &&
		!d.Math && !d.LiveCodeHighlighting &&
		d.FormatAnticipation == nil && len(d.MDXComponentNames) == 0
}
