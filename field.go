package idbstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Field declares a secondary index over a record attribute. The index is named
// after the field. Name may be a dotted key path into nested maps.
type Field struct {
	Name   string `json:"name" yaml:"name"`
	Unique bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
}

func (f Field) String() string {
	if f.Unique {
		return f.Name + " (unique)"
	}
	return f.Name
}

func validateFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: empty name", i)
		}
		if f.Name == KeyField {
			return fmt.Errorf("field %q: the primary key cannot be indexed", f.Name)
		}
		if strings.IndexByte(f.Name, 0) >= 0 {
			return fmt.Errorf("field %q: name contains NUL", f.Name)
		}
		for _, seg := range strings.Split(f.Name, ".") {
			if seg == "" {
				return fmt.Errorf("field %q: empty path segment", f.Name)
			}
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func validateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("empty database name")
	}
	if name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}

func validateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("empty collection name")
	}
	if name == metaBucket {
		return fmt.Errorf("collection name %q is reserved", name)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}
