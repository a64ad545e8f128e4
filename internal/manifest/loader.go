package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the manifest at path. The extension picks the decoder.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, filepath.Base(path))
}

// Parse decodes and validates a manifest. name only supplies the extension.
// Unknown keys are rejected so a misspelt option does not silently default.
func Parse(data []byte, name string) (*Config, error) {
	var (
		cfg Config
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	for i := range cfg.Repositories {
		cfg.Repositories[i].URL = strings.TrimSpace(cfg.Repositories[i].URL)
		cfg.Repositories[i].SearchQuery = strings.TrimSpace(cfg.Repositories[i].SearchQuery)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
