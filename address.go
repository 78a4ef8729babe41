package arx

import "github.com/meigma/arx/internal/container"

// ContentAddress names a blob inside one of the archive's blob pools.
//
// It is a comparable value. An address is only meaningful to the Archive
// that produced it, and only while that Archive is open.
type ContentAddress = container.Address
