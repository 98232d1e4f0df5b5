package altofs

import "testing"

// smallGeometry keeps unit tests fast: 4 cylinders, 1 head, 4
// sectors = 16 pages, enough room for a root directory plus a
// handful of files and free pages.
var smallGeometry = Geometry{Cylinders: 4, Heads: 1, Sectors: 4}

func mustStore(t *testing.T) *PageStore {
	t.Helper()
	s, err := NewPageStore(smallGeometry)
	if err != nil {
		t.Fatalf("NewPageStore: %v", err)
	}
	return s
}

// setHeader fills in the (0, RDA(vda)) header spec section 3 requires
// of every live page.
func setHeader(t *testing.T, s *PageStore, vda VDA) {
	t.Helper()
	rda, err := s.RDA(vda)
	if err != nil {
		t.Fatalf("RDA(%d): %v", vda, err)
	}
	page, err := s.PageMut(vda)
	if err != nil {
		t.Fatalf("PageMut(%d): %v", vda, err)
	}
	page.Header = Header{Zero: 0, RDA: rda}
}

// writeLeader turns the page at vda into a leader page for a file
// with the given serial number, version and name, with no successor.
func writeLeader(t *testing.T, s *PageStore, vda VDA, sn SerialNumber, version uint16, name string) {
	t.Helper()
	setHeader(t, s, vda)
	page, _ := s.PageMut(vda)
	page.Label = Label{
		NextRDA:        0,
		PrevRDA:        0,
		NBytes:         PageDataSize,
		FilePageNumber: 0,
		Version:        version,
		SerialNumber:   sn,
	}
	page.Data[offsetFilename] = byte(len(name))
	copy(page.Data[offsetFilename+1:], name)
}

// linkDataPage appends a full data page after prevVDA carrying nbytes
// of content, returning the new page's VDA. Fixtures place chain
// members at consecutive VDAs (prevVDA+1) so test expectations stay
// deterministic regardless of AllocPage's own scan policy.
func linkDataPage(t *testing.T, s *PageStore, prevVDA VDA, sn SerialNumber, version uint16, pageNumber uint16, nbytes uint16) VDA {
	t.Helper()
	newVDA := prevVDA + 1
	if !s.Pages[newVDA].Label.IsFree() {
		t.Fatalf("linkDataPage: vda %d is not free", newVDA)
	}
	setHeader(t, s, newVDA)

	prevRDA, _ := s.RDA(prevVDA)
	newRDA, _ := s.RDA(newVDA)

	prev, _ := s.PageMut(prevVDA)
	prev.Label.NextRDA = newRDA

	page, _ := s.PageMut(newVDA)
	page.Label = Label{
		NextRDA:        0,
		PrevRDA:        prevRDA,
		NBytes:         nbytes,
		FilePageNumber: pageNumber,
		Version:        version,
		SerialNumber:   sn,
	}
	return newVDA
}

// freeAllPages marks every page free so tests can allocate from a
// clean slate. Headers are set to (0, RDA(vda)) even on free pages,
// since spec section 4.4 step 1 checks every page's header
// unconditionally, free or not.
func freeAllPages(s *PageStore) {
	for i := range s.Pages {
		rda, _ := s.RDA(VDA(i))
		s.Pages[i] = Page{}
		s.Pages[i].Header = Header{Zero: 0, RDA: rda}
		s.Pages[i].Label.Version = VersionFree
	}
}

// buildRootWithEntries creates a root directory (leader at
// RootLeaderVDA) whose single data page holds the given directory
// entries, and returns the root's FileEntry.
func buildRootWithEntries(t *testing.T, s *PageStore, entries []DirectoryEntry) FileEntry {
	t.Helper()
	freeAllPages(s)

	rootSN := SerialNumber{Word1: SNDirectory, Word2: 1}
	writeLeader(t, s, RootLeaderVDA, rootSN, 1, "")

	data := encodeDirEntries(entries)
	dataVDA := linkDataPage(t, s, RootLeaderVDA, rootSN, 1, 1, uint16(len(data)))
	page, _ := s.PageMut(dataVDA)
	copy(page.Data[:], data)

	return FileEntry{SerialNumber: rootSN, Version: 1, LeaderVDA: RootLeaderVDA}
}

func encodeDirEntries(entries []DirectoryEntry) []byte {
	var out []byte
	for _, de := range entries {
		name := de.Filename
		nameBytes := 1 + len(name)
		if nameBytes%2 != 0 {
			nameBytes++
		}
		bodyLen := 10 + nameBytes
		totalLen := 2 + bodyLen
		lengthWords := totalLen / 2

		rec := make([]byte, totalLen)
		header := uint16(lengthWords)
		if de.Valid {
			header |= dirValidBit
		}
		putBE16(rec[0:2], header)
		putBE16(rec[2:4], de.Entry.SerialNumber.Word1)
		putBE16(rec[4:6], de.Entry.SerialNumber.Word2)
		putBE16(rec[6:8], de.Entry.Version)
		putBE16(rec[8:10], 0)
		putBE16(rec[10:12], uint16(de.Entry.LeaderVDA))
		rec[12] = byte(len(name))
		copy(rec[13:13+len(name)], name)

		out = append(out, rec...)
	}
	return out
}

func putBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}
