package altofs

import "fmt"

// FileEntry identifies a file: its serial number, version, and the
// VDA of its leader page (spec section 3).
type FileEntry struct {
	SerialNumber SerialNumber
	Version      uint16
	LeaderVDA    VDA
}

// Position locates a byte within an open file's page chain.
type Position struct {
	VDA          VDA
	PageNumber   uint16
	InPageOffset uint16
}

// OpenFile is a cursor into a file's doubly-linked page chain: a
// position plus a sticky error flag (spec section 4.5). Once err is
// set the cursor refuses further I/O until re-opened (spec section 5).
type OpenFile struct {
	store *PageStore
	Entry FileEntry
	Pos   Position
	err   error
}

// Open creates a cursor over fe. If includeLeader is false (the
// normal case) the cursor starts on the file's first data page;
// otherwise it starts on the leader itself, at offset 0.
func Open(s *PageStore, fe FileEntry, includeLeader bool) (*OpenFile, error) {
	if int(fe.LeaderVDA) >= s.Len() {
		return nil, &FSError{Kind: ErrInvalidArgument, Op: "open",
			Err: fmt.Errorf("leader_vda %d out of range", fe.LeaderVDA)}
	}

	of := &OpenFile{store: s, Entry: fe}

	if includeLeader {
		of.Pos = Position{VDA: fe.LeaderVDA, PageNumber: 0, InPageOffset: 0}
		return of, nil
	}

	leader, err := s.Page(fe.LeaderVDA)
	if err != nil {
		of.err = err
		return nil, err
	}
	of.Pos.PageNumber = 1
	if leader.Label.NextRDA == 0 {
		of.Pos.VDA = 0
		of.Pos.PageNumber = 0
		return of, nil
	}
	nextVDA, err := s.VDA(leader.Label.NextRDA)
	if err != nil {
		of.err = err
		return nil, err
	}
	of.Pos.VDA = nextVDA
	return of, nil
}

// Err returns the sticky error set by a prior failed operation, if any.
func (of *OpenFile) Err() error {
	return of.err
}

func (of *OpenFile) fail(op string, err error) error {
	wrapped := &FSError{Kind: ErrCursorInvalid, Op: op, Err: err}
	of.err = wrapped
	return wrapped
}

// Read copies up to len bytes from the file into dst, advancing the
// cursor. If dst is nil, bytes are skipped rather than copied, which
// allows metering file length without allocating a buffer. Read
// terminates when length reaches zero or the chain ends; it never
// faults at end of file, instead returning a short count.
func (of *OpenFile) Read(dst []byte, length int) (int, error) {
	if of.err != nil {
		return 0, of.err
	}

	var n int
	for length > 0 {
		if of.Pos.VDA == 0 && of.Pos.PageNumber == 0 {
			break
		}
		if int(of.Pos.VDA) >= of.store.Len() {
			return n, of.fail("read", fmt.Errorf("vda %d out of range", of.Pos.VDA))
		}
		page, err := of.store.Page(of.Pos.VDA)
		if err != nil {
			return n, of.fail("read", err)
		}
		if page.Label.FilePageNumber != of.Pos.PageNumber {
			return n, of.fail("read", fmt.Errorf("page %d has file_page_number %d, cursor expects %d",
				of.Pos.VDA, page.Label.FilePageNumber, of.Pos.PageNumber))
		}
		if of.Pos.InPageOffset > page.Label.NBytes {
			return n, of.fail("read", fmt.Errorf("in_page_offset %d exceeds nbytes %d",
				of.Pos.InPageOffset, page.Label.NBytes))
		}

		if of.Pos.InPageOffset < page.Label.NBytes {
			avail := int(page.Label.NBytes) - int(of.Pos.InPageOffset)
			chunk := length
			if avail < chunk {
				chunk = avail
			}
			if dst != nil {
				copy(dst[n:n+chunk], page.Data[of.Pos.InPageOffset:int(of.Pos.InPageOffset)+chunk])
			}
			of.Pos.InPageOffset += uint16(chunk)
			n += chunk
			length -= chunk
			continue
		}

		if err := of.advancePage(page); err != nil {
			return n, err
		}
	}

	return n, nil
}

// advancePage follows page.Label.NextRDA, resetting the in-page
// offset, or terminates the cursor at end of chain.
func (of *OpenFile) advancePage(page *Page) error {
	if page.Label.NextRDA == 0 {
		of.Pos.VDA = 0
		of.Pos.PageNumber = 0
		of.Pos.InPageOffset = 0
		return nil
	}
	nextVDA, err := of.store.VDA(page.Label.NextRDA)
	if err != nil {
		return of.fail("read", err)
	}
	of.Pos.VDA = nextVDA
	of.Pos.PageNumber++
	of.Pos.InPageOffset = 0
	return nil
}

// Write copies len bytes from src into the file starting at the
// cursor, advancing it. When the current page has room beyond its
// nbytes, nbytes is raised (up to PageDataSize). When the chain
// terminates and extend is true, a free page is allocated and linked
// in; when extend is false the write stops short at end of chain.
func (of *OpenFile) Write(src []byte, extend bool) (int, error) {
	if of.err != nil {
		return 0, of.err
	}

	var n int
	length := len(src)
	for length > 0 {
		if of.Pos.VDA == 0 && of.Pos.PageNumber == 0 {
			if !extend {
				break
			}
			if err := of.extendChain(); err != nil {
				return n, err
			}
		}
		if int(of.Pos.VDA) >= of.store.Len() {
			return n, of.fail("write", fmt.Errorf("vda %d out of range", of.Pos.VDA))
		}
		page, err := of.store.PageMut(of.Pos.VDA)
		if err != nil {
			return n, of.fail("write", err)
		}
		if page.Label.FilePageNumber != of.Pos.PageNumber {
			return n, of.fail("write", fmt.Errorf("page %d has file_page_number %d, cursor expects %d",
				of.Pos.VDA, page.Label.FilePageNumber, of.Pos.PageNumber))
		}

		room := PageDataSize - int(of.Pos.InPageOffset)
		if room <= 0 {
			if err := of.advancePageForWrite(page, extend); err != nil {
				return n, err
			}
			continue
		}

		chunk := length
		if room < chunk {
			chunk = room
		}
		copy(page.Data[of.Pos.InPageOffset:int(of.Pos.InPageOffset)+chunk], src[n:n+chunk])
		newOffset := int(of.Pos.InPageOffset) + chunk
		if uint16(newOffset) > page.Label.NBytes {
			page.Label.NBytes = uint16(newOffset)
		}
		of.Pos.InPageOffset = uint16(newOffset)
		n += chunk
		length -= chunk
	}

	return n, nil
}

func (of *OpenFile) advancePageForWrite(page *Page, extend bool) error {
	if page.Label.NextRDA == 0 {
		if !extend {
			of.Pos.VDA = 0
			of.Pos.PageNumber = 0
			of.Pos.InPageOffset = 0
			return nil
		}
		return of.extendChain()
	}
	nextVDA, err := of.store.VDA(page.Label.NextRDA)
	if err != nil {
		return of.fail("write", err)
	}
	of.Pos.VDA = nextVDA
	of.Pos.PageNumber++
	of.Pos.InPageOffset = 0
	return nil
}

// extendChain allocates a free page, links it after the current tail,
// and moves the cursor onto it.
func (of *OpenFile) extendChain() error {
	tailVDA := of.Pos.VDA
	tailPageNumber := of.Pos.PageNumber

	freeVDA, err := of.store.AllocPage()
	if err != nil {
		return of.fail("write", &FSError{Kind: ErrExhaustion, Op: "write", Err: err})
	}

	freeRDA, err := of.store.RDA(freeVDA)
	if err != nil {
		return of.fail("write", err)
	}

	newPage, err := of.store.PageMut(freeVDA)
	if err != nil {
		return of.fail("write", err)
	}
	newPage.Header.Zero = 0
	newPage.Header.RDA = freeRDA
	newPage.Label.SerialNumber = of.Entry.SerialNumber
	newPage.Label.Version = of.Entry.Version
	newPage.Label.NextRDA = 0
	newPage.Label.NBytes = 0

	if tailPageNumber == 0 {
		// Extending straight from an exhausted zero-length file: the
		// new page follows the leader.
		leader, err := of.store.PageMut(of.Entry.LeaderVDA)
		if err != nil {
			return of.fail("write", err)
		}
		leaderRDA, err := of.store.RDA(of.Entry.LeaderVDA)
		if err != nil {
			return of.fail("write", err)
		}
		leader.Label.NextRDA = freeRDA
		newPage.Label.PrevRDA = leaderRDA
		newPage.Label.FilePageNumber = 1
	} else {
		tail, err := of.store.PageMut(tailVDA)
		if err != nil {
			return of.fail("write", err)
		}
		tailRDA, err := of.store.RDA(tailVDA)
		if err != nil {
			return of.fail("write", err)
		}
		tail.Label.NextRDA = freeRDA
		newPage.Label.PrevRDA = tailRDA
		newPage.Label.FilePageNumber = tailPageNumber + 1
	}

	of.Pos.VDA = freeVDA
	of.Pos.PageNumber = newPage.Label.FilePageNumber
	of.Pos.InPageOffset = 0
	return nil
}

// Trim truncates the file at the cursor's current position: the
// current page's nbytes is set to the cursor's in-page offset (and
// its next_rda nulled if that leaves it partly empty), then every
// page beyond it in the chain is marked free (spec section 4.5).
func (of *OpenFile) Trim() error {
	if of.err != nil {
		return of.err
	}
	if of.Pos.VDA == 0 && of.Pos.PageNumber == 0 {
		return nil
	}

	page, err := of.store.PageMut(of.Pos.VDA)
	if err != nil {
		return of.fail("trim", err)
	}

	nextRDA := page.Label.NextRDA
	page.Label.NBytes = of.Pos.InPageOffset
	if of.Pos.InPageOffset < PageDataSize || nextRDA != 0 {
		page.Label.NextRDA = 0
	}

	for nextRDA != 0 {
		vda, err := of.store.VDA(nextRDA)
		if err != nil {
			return of.fail("trim", err)
		}
		victim, err := of.store.PageMut(vda)
		if err != nil {
			return of.fail("trim", err)
		}
		nextRDA = victim.Label.NextRDA
		victim.Label.Version = VersionFree
		victim.Label.PrevRDA = 0
		victim.Label.NextRDA = 0
	}

	return nil
}
