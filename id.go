package jobrun

import "github.com/xraph/jobrun/id"

// ID is the primary identifier type for all jobrun entities.
type ID = id.ID

// Prefix identifies the entity type encoded in an ID.
type Prefix = id.Prefix
