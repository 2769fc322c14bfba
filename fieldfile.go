package idbstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// fieldFile is the on-disk form of a field declaration list:
//
//	fields:
//	  - name: email
//	    unique: true
//	  - name: tag
type fieldFile struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

// LoadFields reads field declarations from a file. Files ending in .yaml or
// .yml are parsed as YAML, anything else as JSON with comments and trailing
// commas allowed.
func LoadFields(path string) ([]Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fields []Field
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		fields, err = ParseFieldsYAML(data)
	default:
		fields, err = ParseFieldsJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fields, nil
}

func ParseFieldsYAML(data []byte) ([]Field, error) {
	var ff fieldFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil {
		return nil, fmt.Errorf("invalid field declarations: %w", err)
	}
	if err := validateFields(ff.Fields); err != nil {
		return nil, err
	}
	return ff.Fields, nil
}

func ParseFieldsJSON(data []byte) ([]Field, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid field declarations: %w", err)
	}
	var ff fieldFile
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ff); err != nil {
		return nil, fmt.Errorf("invalid field declarations: %w", err)
	}
	if err := validateFields(ff.Fields); err != nil {
		return nil, err
	}
	return ff.Fields, nil
}
