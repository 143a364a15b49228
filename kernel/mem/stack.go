package mem

// StackRegion describes a statically reserved stack. The region spans the
// addresses [Base, Base+Size).
type StackRegion struct {
	Base uintptr
	Size Size
}

// Top returns the initial stack pointer for the region: the end of the
// region rounded down to a StackAlignment boundary.
func (r StackRegion) Top() uintptr {
	return (r.Base + uintptr(r.Size)) &^ (StackAlignment - 1)
}

// Contains returns true if addr lies inside the region. The region end is
// considered part of the region since an empty stack points to it.
func (r StackRegion) Contains(addr uintptr) bool {
	return addr >= r.Base && addr <= r.Base+uintptr(r.Size)
}
