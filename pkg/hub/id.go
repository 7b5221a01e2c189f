package sockets

import "fmt"

// InternalId is a process-unique handle for one live socket. Ids are
// allocated monotonically and never reused within a process lifetime.
type InternalId uint64

func (id InternalId) String() string {
	return fmt.Sprintf("%08x", uint64(id))
}
