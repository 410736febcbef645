// Package schemas embeds the JSON schemas for the settings files and the
// session wire messages.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed *.schema.json
var files embed.FS

const (
	Config = "config.schema.json"
	Worlds = "worlds.schema.json"
)

// Compile compiles one embedded schema by file name.
func Compile(name string) (*jsonschema.Schema, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	return c.Compile(name)
}

// Validate checks v against the named schema. v may come from any decoder;
// it is normalized through JSON first so integer and map types line up.
func Validate(name string, v any) error {
	s, err := Compile(name)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
