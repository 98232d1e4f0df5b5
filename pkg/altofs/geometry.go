package altofs

import "fmt"

// VDA is a dense virtual disk address in [0, Geometry.NumPages()).
// VDA 0 doubles as the "end of chain" sentinel (spec section 3);
// it is never a valid file-chain member even though it addresses a
// real page.
type VDA uint16

// RDA is a real disk address: a 16-bit word bit-packing cylinder,
// head and sector, with the low two bits reserved and required zero.
type RDA uint16

const (
	rdaSectorShift   = 12
	rdaSectorMask    = 0xF
	rdaHeadShift     = 2
	rdaCylinderShift = 3
	rdaCylinderMask  = 0x1FF
	rdaReservedMask  = 0x3
)

// Geometry describes the cylinder/head/sector shape of a disk image.
type Geometry struct {
	Cylinders int
	Heads     int
	Sectors   int
}

// DefaultGeometry is the geometry used when none is specified
// (spec section 6): 203 cylinders, 2 heads, 12 sectors -> 4872 pages.
var DefaultGeometry = Geometry{Cylinders: 203, Heads: 2, Sectors: 12}

// NumPages returns the total page count L = C*H*S for this geometry.
func (g Geometry) NumPages() int {
	return g.Cylinders * g.Heads * g.Sectors
}

// Validate checks the geometry bounds from spec section 3:
// cylinders in [0,512), heads in [1,2], sectors in [1,15].
func (g Geometry) Validate() error {
	if g.Cylinders < 0 || g.Cylinders >= 512 {
		return &FSError{Kind: ErrInvalidArgument, Op: "geometry.validate",
			Err: fmt.Errorf("num_cylinders %d out of range [0,512)", g.Cylinders)}
	}
	if g.Heads < 1 || g.Heads > 2 {
		return &FSError{Kind: ErrInvalidArgument, Op: "geometry.validate",
			Err: fmt.Errorf("num_heads %d out of range [1,2]", g.Heads)}
	}
	if g.Sectors < 1 || g.Sectors > 15 {
		return &FSError{Kind: ErrInvalidArgument, Op: "geometry.validate",
			Err: fmt.Errorf("num_sectors %d out of range [1,15]", g.Sectors)}
	}
	return nil
}

// VDAToRDA converts a virtual disk address into a real disk address.
// It fails if vda is outside [0, NumPages()).
func (g Geometry) VDAToRDA(vda VDA) (RDA, error) {
	n := int(vda)
	if n < 0 || n >= g.NumPages() {
		return 0, &FSError{Kind: ErrInvalidArgument, Op: "geometry.vda_to_rda",
			Err: fmt.Errorf("vda %d out of range [0,%d)", n, g.NumPages())}
	}

	sec := n % g.Sectors
	rest := n / g.Sectors
	head := rest % g.Heads
	cyl := rest / g.Heads

	rda := RDA(cyl<<rdaCylinderShift) | RDA(head<<rdaHeadShift) | RDA(sec<<rdaSectorShift)
	return rda, nil
}

// RDAToVDA converts a real disk address into a virtual disk address.
// It fails if any field exceeds this geometry's bounds, or if the
// reserved low two bits of rda are non-zero.
func (g Geometry) RDAToVDA(rda RDA) (VDA, error) {
	if rda&rdaReservedMask != 0 {
		return 0, &FSError{Kind: ErrFormatViolation, Op: "geometry.rda_to_vda",
			Err: fmt.Errorf("rda %#04x has non-zero reserved bits", uint16(rda))}
	}

	sec := int(rda>>rdaSectorShift) & rdaSectorMask
	head := int(rda>>rdaHeadShift) & 0x1
	cyl := int(rda>>rdaCylinderShift) & rdaCylinderMask

	if cyl >= g.Cylinders || head >= g.Heads || sec >= g.Sectors {
		return 0, &FSError{Kind: ErrInvalidArgument, Op: "geometry.rda_to_vda",
			Err: fmt.Errorf("rda %#04x (cyl=%d head=%d sec=%d) exceeds geometry %+v",
				uint16(rda), cyl, head, sec, g)}
	}

	vda := ((cyl * g.Heads) + head) * g.Sectors
	vda += sec
	return VDA(vda), nil
}
