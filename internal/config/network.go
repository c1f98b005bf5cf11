package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crisim/internal/model"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported payload format")

// Format names the encoding of a payload file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatOf picks the payload format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadNetwork reads a network payload, choosing the decoder by extension.
// Unknown keys are rejected.
func LoadNetwork(path string) (model.NetworkSpec, error) {
	format, err := FormatOf(path)
	if err != nil {
		return model.NetworkSpec{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.NetworkSpec{}, fmt.Errorf("reading network file: %w", err)
	}
	spec, err := DecodeNetwork(data, format)
	if err != nil {
		return model.NetworkSpec{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return spec, nil
}

func DecodeNetwork(data []byte, format Format) (model.NetworkSpec, error) {
	var spec model.NetworkSpec
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return model.NetworkSpec{}, err
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &spec)
		if err != nil {
			return model.NetworkSpec{}, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return model.NetworkSpec{}, fmt.Errorf("unknown keys: %v", undecoded)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return model.NetworkSpec{}, err
		}
	default:
		return model.NetworkSpec{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return spec, nil
}
