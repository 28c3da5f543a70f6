package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MetaData describes a flow or library manifest (spec §6).
type MetaData struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
}

// ManifestInput is the serialized form of an Input (spec §6).
type ManifestInput struct {
	ArrayOrder      int               `json:"array_order,omitempty"`
	Generic         bool              `json:"generic,omitempty"`
	Initializer     *InputInitializer `json:"initializer,omitempty"`
	FlowInitializer *InputInitializer `json:"flow_initializer,omitempty"`
}

// ManifestConnection is the serialized form of an OutputConnection (spec §6).
// Source is encoded as "" (whole output), "/json/pointer" (output
// sub-path), or "input:N" (loopback from the function's own input N).
type ManifestConnection struct {
	Source          string `json:"source"`
	ToFunctionID    int    `json:"to_fn"`
	ToInputIndex    int    `json:"to_input"`
	ToFlowID        string `json:"to_flow"`
	Priority        int    `json:"priority,omitempty"`
	ArrayOrderDelta int    `json:"array_order_delta,omitempty"`
	GenericDest     bool   `json:"generic_dst,omitempty"`
}

// EncodeSource renders a Source back to its manifest string form.
func EncodeSource(s Source) string {
	if s.Kind == SourceInput {
		return "input:" + strconv.Itoa(s.InputIndex)
	}
	return s.Path
}

// DecodeSource parses a manifest source string into a Source.
func DecodeSource(s string) (Source, error) {
	if strings.HasPrefix(s, "input:") {
		idx, err := strconv.Atoi(strings.TrimPrefix(s, "input:"))
		if err != nil {
			return Source{}, errors.Wrapf(err, "invalid input-loopback source %q", s)
		}
		return Source{Kind: SourceInput, InputIndex: idx}, nil
	}
	return Source{Kind: SourceOutput, Path: s}, nil
}

// ManifestFunction is the serialized form of a RuntimeFunction (spec §6).
type ManifestFunction struct {
	ID                     int                   `json:"id"`
	FlowID                 string                `json:"flow_id"`
	ImplementationLocation string                `json:"implementation_location"`
	Inputs                 []ManifestInput       `json:"inputs"`
	OutputConnections      []ManifestConnection  `json:"output_connections"`
}

// FlowManifest is the top-level input document (spec §6).
type FlowManifest struct {
	Metadata      MetaData           `json:"metadata"`
	Functions     []ManifestFunction `json:"functions"`
	LibReferences []string           `json:"lib_references,omitempty"`
}

// DecodeFlowManifest parses a flow manifest JSON document.
func DecodeFlowManifest(data []byte) (*FlowManifest, error) {
	var m FlowManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decoding flow manifest")
	}
	return &m, nil
}

// Encode serializes the manifest back to JSON. Encode->Decode->Encode
// yields byte-identical output on both encodings (spec §8 round-trip
// law): Go's encoding/json is
// deterministic for struct fields, so this holds as long as callers do not
// mutate field order.
func (m *FlowManifest) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encoding flow manifest")
	}
	return b, nil
}

// LocatorKind distinguishes a library locator's implementation variant
// (spec §6).
type LocatorKind int

const (
	// LocatorNative names a symbol resolved against statically-linked
	// native implementations.
	LocatorNative LocatorKind = iota
	// LocatorWasm names a relative path to a WASM module.
	LocatorWasm
)

// Locator is one entry of a LibraryManifest's locators map (spec §6):
// tagged union of {Wasm: relative_path} | {Native: symbol}.
type Locator struct {
	Kind   LocatorKind
	Target string
}

type locatorWire struct {
	Wasm   *string `json:"Wasm,omitempty"`
	Native *string `json:"Native,omitempty"`
}

// MarshalJSON implements the {Wasm:...}|{Native:...} tagged-union wire form.
func (l Locator) MarshalJSON() ([]byte, error) {
	switch l.Kind {
	case LocatorWasm:
		return json.Marshal(locatorWire{Wasm: &l.Target})
	case LocatorNative:
		return json.Marshal(locatorWire{Native: &l.Target})
	default:
		return nil, fmt.Errorf("flowrun: unknown locator kind %d", l.Kind)
	}
}

// UnmarshalJSON implements the {Wasm:...}|{Native:...} tagged-union wire form.
func (l *Locator) UnmarshalJSON(data []byte) error {
	var w locatorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Wasm != nil:
		*l = Locator{Kind: LocatorWasm, Target: *w.Wasm}
	case w.Native != nil:
		*l = Locator{Kind: LocatorNative, Target: *w.Native}
	default:
		return errors.New("flowrun: locator has neither Wasm nor Native field")
	}
	return nil
}

// LibraryManifest is the serialized form of a library's exported function
// locators (spec §6).
type LibraryManifest struct {
	LibURL   string             `json:"lib_url"`
	Metadata MetaData           `json:"metadata"`
	Locators map[string]Locator `json:"locators"`
}

// DecodeLibraryManifest parses a library manifest JSON document.
func DecodeLibraryManifest(data []byte) (*LibraryManifest, error) {
	var m LibraryManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decoding library manifest")
	}
	return &m, nil
}
