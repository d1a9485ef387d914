package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// decodeYAMLDocuments splits a pack file on "---" document separators (a
// pack may define several intents per file) and parses each into an
// intentSpec.
func decodeYAMLDocuments(data []byte) ([]*intentSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var specs []*intentSpec
	for {
		var spec intentSpec
		err := dec.Decode(&spec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse intent yaml: %w", err)
		}
		if spec.Name == "" && len(spec.Steps) == 0 && spec.Flow == nil {
			continue // blank document between separators
		}
		specs = append(specs, &spec)
	}
	return specs, nil
}

// LoadFile reads one pack file from disk and registers its intents.
func (r *Registry) LoadFile(path string, force bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pack %s: %w", path, err)
	}
	specs, err := DecodePackFile(data)
	if err != nil {
		return fmt.Errorf("pack %s: %w", path, err)
	}
	_, err = r.LoadPack(path, specs, force)
	return err
}

// DefineFromFile decodes a pack file and registers the single
// definition named `name` into the session scope: the registry-side half
// of a `define <name> --file <path>` OIL line.
func (r *Registry) DefineFromFile(path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("define %s: read %s: %w", name, path, err)
	}
	specs, err := decodeYAMLDocuments(data)
	if err != nil {
		return fmt.Errorf("define %s: %w", name, err)
	}
	var match *intentSpec
	for _, s := range specs {
		if s.Name == name {
			match = s
			break
		}
	}
	if match == nil {
		return fmt.Errorf("define %s: pack %s contains no intent named %q", name, path, name)
	}
	if err := match.validate(); err != nil {
		return err
	}
	def, err := match.compile()
	if err != nil {
		return err
	}
	r.DefineSession(def)
	return nil
}

// LoadDir loads every *.yaml/*.yml file directly under dir (non-recursive,
// a flat pack directory convention). It returns
// the first error encountered but continues attempting no further files
// once one fails, since a partially loaded pack directory is a worse
// failure mode than an early, loud stop.
func (r *Registry) LoadDir(dir string, force bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read pack dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, e.Name()), force); err != nil {
			return err
		}
	}
	return nil
}
