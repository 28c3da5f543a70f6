package model

import "flowrun/internal/value"

// Value re-exports value.Value so callers building manifests/jobs do not
// need a second import for the dynamically-typed tree type.
type Value = value.Value
