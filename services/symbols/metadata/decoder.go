// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metadata

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// Default version gate.
const (
	// DefaultMinVersion is the oldest metadata version the decoder reads.
	DefaultMinVersion = "v1.4.0"

	// DefaultMaxMajor is the newest major metadata version the decoder reads.
	DefaultMaxMajor = 2
)

// Status is the outcome of decoding the metadata of one type.
type Status int

const (
	// StatusDecoded means the blob was read and Result carries its content.
	StatusDecoded Status = iota

	// StatusAbsent means the type carries no metadata at all.
	StatusAbsent

	// StatusUnsupportedVersion means the blob exists but was written by a
	// version this decoder does not read.
	StatusUnsupportedVersion
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusDecoded:
		return "decoded"
	case StatusAbsent:
		return "absent"
	case StatusUnsupportedVersion:
		return "unsupported_version"
	default:
		return "unknown"
	}
}

// Result is a decoded metadata blob.
//
// Exactly one of Class, Package, Facade or Synthetic is set when Status is
// StatusDecoded, matching Kind:
//
//	BlobClass            -> Class
//	BlobFileFacade       -> Package
//	BlobMultiFilePart    -> Package (FacadeName names the owning facade)
//	BlobMultiFileFacade  -> Facade
//	BlobSyntheticClass   -> Synthetic
type Result struct {
	Status     Status
	Kind       platform.BlobKind
	Version    string
	Class      *Class
	Package    *Package
	Facade     *MultiFileFacade
	Synthetic  *SyntheticClass
	FacadeName string
}

// Decoder turns a raw blob into a metadata tree.
//
// Implementations must resolve every name reference inside the blob against
// that blob's own string table and must be safe for concurrent use.
type Decoder interface {
	Decode(b platform.Blob) (Result, error)
}

// DecodeNode decodes the metadata attached to a platform type node.
//
// Outputs:
//
//	Result - StatusAbsent when n carries no blob.
//	error - Whatever the decoder returns.
func DecodeNode(d Decoder, n platform.Node) (Result, error) {
	b, ok := n.Metadata()
	if !ok {
		return Result{Status: StatusAbsent}, nil
	}
	return d.Decode(b)
}

// document is the YAML payload carried in Blob.Data.
type document struct {
	Class     *Class           `yaml:"class,omitempty"`
	Package   *Package         `yaml:"package,omitempty"`
	Facade    *MultiFileFacade `yaml:"facade,omitempty"`
	Synthetic *SyntheticClass  `yaml:"synthetic,omitempty"`
}

// DecoderOptions configures the version gate of BlobDecoder.
type DecoderOptions struct {
	// MinVersion is the oldest readable version, in semver form ("v1.4.0").
	MinVersion string

	// MaxMajor is the newest readable major version.
	MaxMajor int
}

// DefaultDecoderOptions returns the default options.
func DefaultDecoderOptions() DecoderOptions {
	return DecoderOptions{
		MinVersion: DefaultMinVersion,
		MaxMajor:   DefaultMaxMajor,
	}
}

// DecoderOption is a functional option for configuring BlobDecoder.
type DecoderOption func(*DecoderOptions)

// WithMinVersion sets the oldest readable metadata version.
func WithMinVersion(v string) DecoderOption {
	return func(o *DecoderOptions) {
		o.MinVersion = canonicalVersion(v)
	}
}

// WithMaxMajor sets the newest readable major version.
func WithMaxMajor(major int) DecoderOption {
	return func(o *DecoderOptions) {
		o.MaxMajor = major
	}
}

// BlobDecoder is the reference Decoder for YAML-encoded blobs.
//
// Thread Safety:
//
//	BlobDecoder is stateless after construction and safe for concurrent use.
type BlobDecoder struct {
	options DecoderOptions
}

// NewBlobDecoder creates a decoder with the given options.
func NewBlobDecoder(opts ...DecoderOption) *BlobDecoder {
	options := DefaultDecoderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &BlobDecoder{options: options}
}

// Decode implements Decoder.
//
// Description:
//
//	Checks the version gate, unmarshals Data, then resolves every class
//	name index against Strings. A blob written by an unsupported version
//	yields StatusUnsupportedVersion and a nil error so that callers can
//	decide how fatal that is.
//
// Errors:
//
//	ErrInvalidMetadata - Malformed version, YAML, payload/kind mismatch or a
//	                     string index outside the table.
func (d *BlobDecoder) Decode(b platform.Blob) (Result, error) {
	res := Result{Kind: b.Kind, Version: b.Version}

	v := canonicalVersion(b.Version)
	if !semver.IsValid(v) {
		return res, fmt.Errorf("%w: version %q", ErrInvalidMetadata, b.Version)
	}
	if !d.supports(v) {
		res.Status = StatusUnsupportedVersion
		return res, nil
	}

	var doc document
	if err := yaml.Unmarshal(b.Data, &doc); err != nil {
		return res, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	r := resolver{strings: b.Strings}
	switch b.Kind {
	case platform.BlobClass:
		if doc.Class == nil {
			return res, fmt.Errorf("%w: class blob without class payload", ErrInvalidMetadata)
		}
		if err := r.class(doc.Class); err != nil {
			return res, err
		}
		res.Class = doc.Class
	case platform.BlobFileFacade, platform.BlobMultiFilePart:
		if doc.Package == nil {
			doc.Package = &Package{}
		}
		if err := r.pkg(doc.Package); err != nil {
			return res, err
		}
		res.Package = doc.Package
		if b.Kind == platform.BlobMultiFilePart {
			res.FacadeName = b.ExtraString
		}
	case platform.BlobMultiFileFacade:
		if doc.Facade == nil {
			doc.Facade = &MultiFileFacade{}
		}
		res.Facade = doc.Facade
	case platform.BlobSyntheticClass:
		if doc.Synthetic == nil {
			doc.Synthetic = &SyntheticClass{}
		}
		if doc.Synthetic.Lambda != nil {
			if err := r.function(doc.Synthetic.Lambda); err != nil {
				return res, err
			}
		}
		res.Synthetic = doc.Synthetic
	default:
		return res, fmt.Errorf("%w: unknown blob kind %d", ErrInvalidMetadata, int(b.Kind))
	}

	res.Status = StatusDecoded
	return res, nil
}

func (d *BlobDecoder) supports(v string) bool {
	if d.options.MinVersion != "" && semver.Compare(v, d.options.MinVersion) < 0 {
		return false
	}
	if d.options.MaxMajor > 0 && semver.Compare(semver.Major(v), fmt.Sprintf("v%d", d.options.MaxMajor)) > 0 {
		return false
	}
	return true
}

// canonicalVersion accepts "1.9.0" as well as "v1.9.0".
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// =============================================================================
// Encoding
// =============================================================================

// Encoded is the payload of Encode, ready to be placed on a platform.Blob.
type Encoded struct {
	Data    []byte
	Strings []string
}

// Encode writes a metadata tree in the BlobDecoder wire form.
//
// Description:
//
//	Interns every class name into a fresh string table, rewriting the
//	ClassIndex/NameIndex fields of a copy of the input, then marshals the
//	payload. The input is not modified. Exactly one of the arguments should
//	be non-nil.
//
// Outputs:
//
//	Encoded - Data and string table.
//	error - Non-nil if marshalling fails.
func Encode(class *Class, pkg *Package, facade *MultiFileFacade, synthetic *SyntheticClass) (Encoded, error) {
	in := &interner{index: make(map[string]int)}
	var doc document

	if class != nil {
		c := cloneClass(*class)
		in.class(&c)
		doc.Class = &c
	}
	if pkg != nil {
		p := clonePackage(*pkg)
		in.pkg(&p)
		doc.Package = &p
	}
	if facade != nil {
		f := MultiFileFacade{Parts: append([]string(nil), facade.Parts...)}
		doc.Facade = &f
	}
	if synthetic != nil {
		s := SyntheticClass{}
		if synthetic.Lambda != nil {
			fn := cloneFunction(*synthetic.Lambda)
			in.function(&fn)
			s.Lambda = &fn
		}
		doc.Synthetic = &s
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return Encoded{}, fmt.Errorf("encoding metadata: %w", err)
	}
	return Encoded{Data: data, Strings: in.table}, nil
}
