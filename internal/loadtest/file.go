package loadtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/microerror"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for files, where headers and body are usually
// written as nested documents rather than JSON strings.
type fileConfig struct {
	TargetURL    string      `json:"targetUrl" yaml:"targetUrl"`
	VirtualUsers int         `json:"virtualUsers" yaml:"virtualUsers"`
	Duration     string      `json:"duration" yaml:"duration"`
	Method       string      `json:"method" yaml:"method"`
	CallType     CallType    `json:"callType" yaml:"callType"`
	RampUp       string      `json:"rampUp" yaml:"rampUp"`
	Headers      interface{} `json:"headers" yaml:"headers"`
	Body         interface{} `json:"body" yaml:"body"`
}

// LoadFile loads a load test configuration from a .yaml, .yml, .json or
// .jsonc file. Headers and body may be given either as JSON strings or as
// nested objects. The result is normalized but not validated.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
			return Config{}, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return Config{}, microerror.Maskf(unsupportedFormatError, "unsupported config file format: %s (use .yaml, .yml, .json or .jsonc)", ext)
	}

	headers, err := documentString(fc.Headers)
	if err != nil {
		return Config{}, microerror.Maskf(validationError, "headers: %s", err)
	}
	body, err := documentString(fc.Body)
	if err != nil {
		return Config{}, microerror.Maskf(validationError, "body: %s", err)
	}

	cfg := Config{
		TargetURL:    fc.TargetURL,
		VirtualUsers: fc.VirtualUsers,
		Duration:     fc.Duration,
		Method:       fc.Method,
		CallType:     fc.CallType,
		RampUp:       fc.RampUp,
		Headers:      headers,
		Body:         body,
	}

	return cfg.Normalize(), nil
}

// documentString turns a decoded document into its JSON text. Strings are
// taken as already encoded JSON.
func documentString(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
