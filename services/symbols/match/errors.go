// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package match

import (
	"errors"
	"fmt"
)

var (
	// ErrParameterMismatch is returned when two members believed to be the
	// same disagree on their parameter names or counts.
	ErrParameterMismatch = errors.New("match: parameter mismatch")

	// ErrAmbiguousOrMissingMember is returned when zero or several platform
	// members match an expected signature.
	ErrAmbiguousOrMissingMember = errors.New("match: ambiguous or missing member")

	// ErrOrphanProperty is returned when a property has no field, getter or
	// setter on the platform.
	ErrOrphanProperty = errors.New("match: orphan property")

	// ErrPropertyTypeConflict is returned when the resolved members of one
	// property disagree on its type or enclosing declaration.
	ErrPropertyTypeConflict = errors.New("match: property type conflict")
)

// MemberLookupError describes a failed exact-signature lookup.
//
// It unwraps to ErrAmbiguousOrMissingMember.
type MemberLookupError struct {
	// Signature is the expected signature, e.g. "getName()Ljava/lang/String;".
	Signature string

	// Scope is the qualified name of the searched declaration.
	Scope string

	// Candidates is the number of platform members that matched.
	Candidates int
}

// Error implements error.
func (e *MemberLookupError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("%v: no member %s in %s", ErrAmbiguousOrMissingMember, e.Signature, e.Scope)
	}
	return fmt.Sprintf("%v: %d members match %s in %s", ErrAmbiguousOrMissingMember, e.Candidates, e.Signature, e.Scope)
}

// Unwrap returns ErrAmbiguousOrMissingMember.
func (e *MemberLookupError) Unwrap() error {
	return ErrAmbiguousOrMissingMember
}
