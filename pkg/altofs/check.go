package altofs

import "fmt"

// CheckIntegrity walks every page once, accumulating a diagnostic for
// each fault found but continuing past it, so a single pass produces
// a complete report (spec section 4.4). It returns nil if the image
// is fully consistent.
func CheckIntegrity(s *PageStore) []error {
	var errs []error

	report := func(vda VDA, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		errs = append(errs, &FSError{Kind: ErrFormatViolation, Op: "check_integrity",
			Err: fmt.Errorf("page %d: %s", vda, msg)})
	}

	for i := 0; i < s.Len(); i++ {
		vda := VDA(i)
		page := &s.Pages[i]

		wantRDA, err := s.RDA(vda)
		if err != nil {
			report(vda, "cannot compute expected rda: %v", err)
			continue
		}
		if page.Header.Zero != 0 || page.Header.RDA != wantRDA {
			report(vda, "header mismatch: got (%d,%#04x), want (0,%#04x)",
				page.Header.Zero, uint16(page.Header.RDA), uint16(wantRDA))
		}

		if page.Label.IsFree() {
			continue
		}
		if page.Label.Version == VersionBad {
			if page.Label.SerialNumber != snBadSentinel {
				report(vda, "bad-sector marker has wrong serial number")
			}
			continue
		}
		if page.Label.Version == VersionInvalid {
			report(vda, "invalid (zero) version on a page that is neither free nor bad")
			continue
		}

		if page.Label.NBytes > PageDataSize {
			report(vda, "nbytes %d exceeds page size %d", page.Label.NBytes, PageDataSize)
		}

		if page.Label.PrevRDA != 0 {
			checkPrevLink(s, vda, page, report)
		} else {
			checkLeaderShape(vda, page, report)
		}

		if page.Label.NextRDA != 0 {
			checkNextLink(s, vda, page, report)
		}
	}

	return errs
}

type reportFunc func(vda VDA, format string, args ...interface{})

func checkPrevLink(s *PageStore, vda VDA, page *Page, report reportFunc) {
	prevVDA, err := s.VDA(page.Label.PrevRDA)
	if err != nil {
		report(vda, "prev_rda %#04x is malformed: %v", uint16(page.Label.PrevRDA), err)
		return
	}
	prev, err := s.Page(prevVDA)
	if err != nil {
		report(vda, "prev_rda points out of range: %v", err)
		return
	}
	if prev.Label.SerialNumber != page.Label.SerialNumber {
		report(vda, "serial number mismatch with predecessor at vda %d", prevVDA)
	}
	if prev.Label.FilePageNumber+1 != page.Label.FilePageNumber {
		report(vda, "file_page_number %d does not follow predecessor's %d",
			page.Label.FilePageNumber, prev.Label.FilePageNumber)
	}
	if vda != 0 {
		selfRDA, err := s.RDA(vda)
		if err == nil && prev.Label.NextRDA != selfRDA {
			report(vda, "predecessor at vda %d does not point back via next_rda", prevVDA)
		}
	}
}

func checkLeaderShape(vda VDA, page *Page, report reportFunc) {
	if page.Label.FilePageNumber != 0 {
		report(vda, "leader has non-zero file_page_number %d", page.Label.FilePageNumber)
	}
	if page.Label.NBytes != PageDataSize {
		report(vda, "leader is not full: nbytes=%d", page.Label.NBytes)
	}
	nameLen := int(page.Data[offsetFilename])
	if nameLen <= 0 || nameLen >= 40 {
		report(vda, "leader filename length %d out of range (0,40)", nameLen)
	}
}

func checkNextLink(s *PageStore, vda VDA, page *Page, report reportFunc) {
	if page.Label.NBytes != PageDataSize {
		report(vda, "non-terminal page is not full: nbytes=%d", page.Label.NBytes)
	}
	nextVDA, err := s.VDA(page.Label.NextRDA)
	if err != nil {
		report(vda, "next_rda %#04x is malformed: %v", uint16(page.Label.NextRDA), err)
		return
	}
	next, err := s.Page(nextVDA)
	if err != nil {
		report(vda, "next_rda points out of range: %v", err)
		return
	}
	if next.Label.SerialNumber != page.Label.SerialNumber {
		report(vda, "serial number mismatch with successor at vda %d", nextVDA)
	}
	if next.Label.FilePageNumber != page.Label.FilePageNumber+1 {
		report(vda, "successor at vda %d has file_page_number %d, want %d",
			nextVDA, next.Label.FilePageNumber, page.Label.FilePageNumber+1)
	}
	if vda != 0 {
		selfRDA, err := s.RDA(vda)
		if err == nil && next.Label.PrevRDA != selfRDA {
			report(vda, "successor at vda %d does not point back via prev_rda", nextVDA)
		}
	}
}
