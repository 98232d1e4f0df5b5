package altofs

import "fmt"

// PageStore is a dense in-memory array of fixed-size pages indexed by
// VDA, plus the geometry used to interpret RDAs (spec section 4.3).
// It owns all page memory for the image's lifetime; it is not
// internally synchronized, so concurrent callers must serialize
// externally (spec section 5).
type PageStore struct {
	Geometry Geometry
	Pages    []Page
}

// NewPageStore validates the geometry and allocates L zero-initialized
// pages.
func NewPageStore(dg Geometry) (*PageStore, error) {
	if err := dg.Validate(); err != nil {
		return nil, err
	}
	return &PageStore{
		Geometry: dg,
		Pages:    make([]Page, dg.NumPages()),
	}, nil
}

// Len returns the number of pages (L) in the store.
func (s *PageStore) Len() int {
	return len(s.Pages)
}

// Page returns a borrowed read-only pointer to the page at vda.
func (s *PageStore) Page(vda VDA) (*Page, error) {
	if int(vda) >= len(s.Pages) {
		return nil, &FSError{Kind: ErrInvalidArgument, Op: "store.page",
			Err: fmt.Errorf("vda %d out of range [0,%d)", vda, len(s.Pages))}
	}
	return &s.Pages[vda], nil
}

// PageMut returns an exclusive pointer to the page at vda, for I/O,
// trim, and allocation use (spec section 3: ownership/lifetime).
func (s *PageStore) PageMut(vda VDA) (*Page, error) {
	return s.Page(vda)
}

// RDA returns the real disk address of vda under this store's geometry.
func (s *PageStore) RDA(vda VDA) (RDA, error) {
	return s.Geometry.VDAToRDA(vda)
}

// VDA returns the virtual disk address named by rda under this
// store's geometry.
func (s *PageStore) VDA(rda RDA) (VDA, error) {
	return s.Geometry.RDAToVDA(rda)
}
