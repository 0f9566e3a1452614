// Package idl generates interface-description documents for compiled
// programs. The JSON shape follows the Anchor convention so external
// tooling can discover a program's callable entrypoints.
package idl

import (
	"encoding/json"
	"fmt"
	"os"
)

// Version is the document format version stamped into every IDL.
const Version = "0.1.0"

// Arg describes one entrypoint argument.
type Arg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Instruction describes one callable entrypoint.
type Instruction struct {
	Name string `json:"name"`
	Args []Arg  `json:"args"`
}

// Account describes one account role the program touches.
type Account struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Document is a complete IDL. All collections marshal as arrays, never
// null, so consumers can iterate without nil checks.
type Document struct {
	Version      string        `json:"version"`
	Name         string        `json:"name"`
	Instructions []Instruction `json:"instructions"`
	Accounts     []Account     `json:"accounts"`
	Types        []any         `json:"types"`
}

// New builds a document for a program and its entrypoint names.
func New(name string, entrypoints []string) *Document {
	doc := &Document{
		Version:      Version,
		Name:         name,
		Instructions: make([]Instruction, 0, len(entrypoints)),
		Accounts:     []Account{},
		Types:        []any{},
	}
	for _, ep := range entrypoints {
		doc.Instructions = append(doc.Instructions, Instruction{Name: ep, Args: []Arg{}})
	}
	return doc
}

// JSON renders the document as indented JSON.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("idl: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes the document as JSON to path.
func (d *Document) WriteFile(path string) error {
	data, err := d.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("idl: writing %s: %w", path, err)
	}
	return nil
}

// Load reads a document back from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("idl: reading %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("idl: parsing %s: %w", path, err)
	}
	return &doc, nil
}
