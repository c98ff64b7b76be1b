package picklehost

// Allocator is the allocation contract shared by the interpreter, the module
// layer and the storage engine.
//
// Allocate resizes block from oldSize to newSize bytes. A newSize of zero
// releases the block and returns nil. Growing returns a new block holding the
// first oldSize bytes of the old one, or nil when the allocation fails.
// Shrinking returns block unchanged.
type Allocator interface {
	Allocate(block []byte, oldSize, newSize int) []byte
}
