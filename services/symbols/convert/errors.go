// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package convert

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

var (
	// ErrUnsupportedNodeKind is returned for platform nodes the engine has
	// no conversion for.
	ErrUnsupportedNodeKind = errors.New("unsupported node kind")

	// ErrNilNode is returned when Convert is given a nil node.
	ErrNilNode = errors.New("nil node")
)

// ConversionError reports a failed conversion of one platform node.
//
// It carries enough context to locate the node and unwraps to the root
// cause, so callers can still test for the sentinels of the match,
// signature and metadata packages with errors.Is.
type ConversionError struct {
	// Key is the structural identity of the node.
	Key platform.Key

	// Name is the node's qualified name.
	Name string

	// Kind is the node's platform kind.
	Kind platform.Kind

	// Step names what was being converted when the error occurred, e.g.
	// "function load" or "property name".
	Step string

	// Err is the underlying error.
	Err error
}

func (e *ConversionError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("convert %s %s: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("convert %s %s (%s): %v", e.Kind, e.Name, e.Step, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// conversionError wraps err for n unless err already is a ConversionError.
func conversionError(n platform.Node, step string, err error) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConversionError{
		Key:  platform.KeyOf(n),
		Name: platform.QualifiedName(n),
		Kind: n.Kind(),
		Step: step,
		Err:  err,
	}
}
