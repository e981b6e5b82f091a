// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixture builds in-memory platform trees from YAML descriptions.
//
// A fixture lists packages, types and members with their binary
// descriptors. Types may carry metadata written in the readable metadata
// form (type references as strings such as "kotlin/collections/List<#0>?");
// Build encodes it into string-table blobs exactly as a compiler would
// attach them, so the result exercises the real decoder.
package fixture

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// DefaultMetadataVersion is used when a fixture omits the blob version.
const DefaultMetadataVersion = "2.0.0"

// Fixture is the root of a fixture document.
type Fixture struct {
	// Module is the module name.
	Module string `yaml:"module" validate:"required"`

	Packages []Package `yaml:"packages" validate:"dive"`
}

// Package is one platform package.
type Package struct {
	// Name is the dotted package name.
	Name string `yaml:"name" validate:"required"`

	Types []Type `yaml:"types" validate:"dive"`
}

// Type is one platform type and its members.
type Type struct {
	Name           string       `yaml:"name" validate:"required"`
	Modifiers      []string     `yaml:"modifiers"`
	TypeParameters []string     `yaml:"type_parameters"`
	Metadata       *Metadata    `yaml:"metadata"`
	Initializer    bool         `yaml:"initializer"`
	Constructors   []Executable `yaml:"constructors" validate:"dive"`
	Methods        []Executable `yaml:"methods" validate:"dive"`
	Fields         []Field      `yaml:"fields" validate:"dive"`

	// Types are nested types.
	Types []Type `yaml:"types" validate:"dive"`
}

// Executable is a method or constructor.
type Executable struct {
	// Name is ignored for constructors.
	Name           string   `yaml:"name"`
	Descriptor     string   `yaml:"descriptor" validate:"required"`
	Params         []string `yaml:"params"`
	Modifiers      []string `yaml:"modifiers"`
	TypeParameters []string `yaml:"type_parameters"`
}

// Field is a platform field.
type Field struct {
	Name       string   `yaml:"name" validate:"required"`
	Descriptor string   `yaml:"descriptor" validate:"required"`
	Modifiers  []string `yaml:"modifiers"`

	// Constant is the compile-time value, if any.
	Constant any `yaml:"constant"`
}

// Metadata is the declaration metadata attached to a type. Exactly the
// payload matching Kind should be set.
type Metadata struct {
	Kind       string                    `yaml:"kind" validate:"required,oneof=class file_facade synthetic_class multi_file_facade multi_file_part"`
	Version    string                    `yaml:"version"`
	FacadeName string                    `yaml:"facade_name"`
	Class      *metadata.Class           `yaml:"class"`
	Package    *metadata.Package         `yaml:"package"`
	Facade     *metadata.MultiFileFacade `yaml:"facade"`
	Synthetic  *metadata.SyntheticClass  `yaml:"synthetic"`
}

var blobKinds = map[string]platform.BlobKind{
	"class":             platform.BlobClass,
	"file_facade":       platform.BlobFileFacade,
	"synthetic_class":   platform.BlobSyntheticClass,
	"multi_file_facade": platform.BlobMultiFileFacade,
	"multi_file_part":   platform.BlobMultiFilePart,
}

var modifierNames = map[string]platform.Modifiers{
	"public":     platform.ModPublic,
	"protected":  platform.ModProtected,
	"private":    platform.ModPrivate,
	"static":     platform.ModStatic,
	"final":      platform.ModFinal,
	"abstract":   platform.ModAbstract,
	"synthetic":  platform.ModSynthetic,
	"enum":       platform.ModEnum,
	"interface":  platform.ModInterface,
	"annotation": platform.ModAnnotation,
}

// =============================================================================
// Loading
// =============================================================================

// Load reads and builds the fixture at path.
func Load(path string) (*platform.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes, validates and builds a fixture document.
//
// Outputs:
//
//	*platform.Element - The module node.
//	error - Non-nil if the document is malformed or describes an invalid
//	        tree.
func Parse(data []byte) (*platform.Element, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&f); err != nil {
		return nil, fmt.Errorf("validating fixture: %w", err)
	}
	return f.Build()
}

// Build turns the fixture into a platform tree.
func (f *Fixture) Build() (*platform.Element, error) {
	mod := platform.NewModule(f.Module)
	for _, p := range f.Packages {
		pkg, err := mod.AddPackage(p.Name)
		if err != nil {
			return nil, err
		}
		for _, t := range p.Types {
			if err := buildType(pkg, t); err != nil {
				return nil, fmt.Errorf("type %s.%s: %w", p.Name, t.Name, err)
			}
		}
	}
	return mod, nil
}

func buildType(parent *platform.Element, t Type) error {
	mods, err := parseModifiers(t.Modifiers)
	if err != nil {
		return err
	}
	typ, err := parent.AddType(t.Name, mods)
	if err != nil {
		return err
	}
	for _, tp := range t.TypeParameters {
		if _, err := typ.AddTypeParameter(tp); err != nil {
			return err
		}
	}
	if t.Initializer {
		if _, err := typ.AddInitializer(); err != nil {
			return err
		}
	}
	for _, c := range t.Constructors {
		mods, err := parseModifiers(c.Modifiers)
		if err != nil {
			return err
		}
		ctor, err := typ.AddConstructor(c.Descriptor, mods, c.Params...)
		if err != nil {
			return fmt.Errorf("constructor %s: %w", c.Descriptor, err)
		}
		if err := addTypeParameters(ctor, c.TypeParameters); err != nil {
			return err
		}
	}
	for _, m := range t.Methods {
		mods, err := parseModifiers(m.Modifiers)
		if err != nil {
			return err
		}
		method, err := typ.AddMethod(m.Name, m.Descriptor, mods, m.Params...)
		if err != nil {
			return fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
		if err := addTypeParameters(method, m.TypeParameters); err != nil {
			return err
		}
	}
	for _, fd := range t.Fields {
		mods, err := parseModifiers(fd.Modifiers)
		if err != nil {
			return err
		}
		field, err := typ.AddField(fd.Name, fd.Descriptor, mods)
		if err != nil {
			return fmt.Errorf("field %s: %w", fd.Name, err)
		}
		if fd.Constant != nil {
			if err := field.SetConstant(fd.Constant); err != nil {
				return err
			}
		}
	}
	for _, nested := range t.Types {
		if err := buildType(typ, nested); err != nil {
			return fmt.Errorf("nested type %s: %w", nested.Name, err)
		}
	}
	if t.Metadata != nil {
		blob, err := encodeBlob(typ, t.Metadata)
		if err != nil {
			return err
		}
		if err := typ.SetMetadata(blob); err != nil {
			return err
		}
	}
	return nil
}

func addTypeParameters(e *platform.Element, names []string) error {
	for _, n := range names {
		if _, err := e.AddTypeParameter(n); err != nil {
			return err
		}
	}
	return nil
}

func parseModifiers(names []string) (platform.Modifiers, error) {
	var mods platform.Modifiers
	for _, n := range names {
		m, ok := modifierNames[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("unknown modifier %q", n)
		}
		mods |= m
	}
	return mods, nil
}

// encodeBlob encodes the metadata of typ. Class names default to the
// type's internal name with nested types joined by '.'.
func encodeBlob(typ *platform.Element, md *Metadata) (platform.Blob, error) {
	kind, ok := blobKinds[md.Kind]
	if !ok {
		return platform.Blob{}, fmt.Errorf("unknown metadata kind %q", md.Kind)
	}
	version := md.Version
	if version == "" {
		version = DefaultMetadataVersion
	}

	class := md.Class
	if kind == platform.BlobClass {
		if class == nil {
			class = &metadata.Class{}
		}
		named := *class
		named.Name = strings.ReplaceAll(platform.InternalName(typ), "$", ".")
		class = &named
	}

	enc, err := metadata.Encode(class, md.Package, md.Facade, md.Synthetic)
	if err != nil {
		return platform.Blob{}, err
	}
	blob := platform.Blob{
		Kind:        kind,
		Version:     version,
		Data:        enc.Data,
		Strings:     enc.Strings,
		ExtraString: md.FacadeName,
	}
	if pkg := platform.PackageOf(typ); pkg != nil {
		blob.PackageName = pkg.SimpleName()
	}
	return blob, nil
}
