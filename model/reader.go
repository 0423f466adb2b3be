package model

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadJSON decodes and validates a descriptor from JSON.
func ReadJSON(r io.Reader) (*Descriptor, error) {
	var d Descriptor
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("model: decode json: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ReadXML decodes and validates a descriptor from XML.
func ReadXML(r io.Reader) (*Descriptor, error) {
	var d Descriptor
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("model: decode xml: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ReadFile reads a descriptor from path. Files ending in .xml are decoded as
// XML, everything else as JSON.
func ReadFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return ReadXML(f)
	}
	return ReadJSON(f)
}

// WriteJSON encodes d as indented JSON.
func WriteJSON(w io.Writer, d *Descriptor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("model: encode json: %w", err)
	}
	return nil
}
