// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package platform

import "errors"

var (
	// ErrMalformedDescriptor is returned when a binary descriptor does not
	// follow the descriptor grammar.
	ErrMalformedDescriptor = errors.New("platform: malformed descriptor")

	// ErrInvalidTree is returned by the Element builder when a declaration
	// is attached somewhere the tree shape does not allow.
	ErrInvalidTree = errors.New("platform: invalid tree")
)
