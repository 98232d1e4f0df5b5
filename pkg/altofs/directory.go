package altofs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// RootLeaderVDA is the VDA of the filesystem root directory's leader
// page (spec section 4.8).
const RootLeaderVDA VDA = 1

// maxDirEntryBytes caps the buffer used to decode one directory
// entry; entries claiming to be larger have their tail skipped
// rather than read (spec section 4.8 step 2).
const maxDirEntryBytes = 128

const dirValidBit = 1 << 10
const dirLengthMask = 0x3FF

// ScanResult is the caller callback contract from
// original_source/src/fs.h's scan_files_cb/scan_directory_cb,
// preserved literally per spec section 9's directive not to
// silently change specified behavior.
type ScanResult int

const (
	ScanAbort    ScanResult = -1
	ScanStop     ScanResult = 0
	ScanContinue ScanResult = 1
)

// DirectoryEntry is one decoded record from a directory file (spec
// section 3).
type DirectoryEntry struct {
	Valid    bool
	Entry    FileEntry
	Filename string
}

// ScanDirectoryFunc is invoked once per directory entry encountered
// by ScanDirectory.
type ScanDirectoryFunc func(de DirectoryEntry) (ScanResult, error)

// ScanDirectory opens dirEntry as a file (excluding its leader) and
// walks its variable-length entry records, invoking cb for each
// valid entry (spec section 4.8).
func ScanDirectory(s *PageStore, dirEntry FileEntry, cb ScanDirectoryFunc) error {
	of, err := Open(s, dirEntry, false)
	if err != nil {
		return err
	}

	header := make([]byte, 2)
	for {
		n, err := of.Read(header, 2)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if n < 2 {
			return &FSError{Kind: ErrFormatViolation, Op: "scan_directory",
				Err: fmt.Errorf("truncated directory entry header")}
		}

		word := binary.BigEndian.Uint16(header)
		valid := word&dirValidBit != 0
		lengthWords := int(word & dirLengthMask)
		if lengthWords == 0 {
			return &FSError{Kind: ErrFormatViolation, Op: "scan_directory",
				Err: fmt.Errorf("zero-length directory entry")}
		}

		remaining := lengthWords*2 - 2
		bufLen := remaining
		if bufLen > maxDirEntryBytes {
			bufLen = maxDirEntryBytes
		}
		body := make([]byte, bufLen)
		if bufLen > 0 {
			n, err := of.Read(body, bufLen)
			if err != nil {
				return err
			}
			if n < bufLen {
				return &FSError{Kind: ErrFormatViolation, Op: "scan_directory",
					Err: fmt.Errorf("truncated directory entry body")}
			}
		}
		if skip := remaining - bufLen; skip > 0 {
			if _, err := of.Read(nil, skip); err != nil {
				return err
			}
		}

		if !valid {
			continue
		}
		if len(body) < 11 {
			return &FSError{Kind: ErrFormatViolation, Op: "scan_directory",
				Err: fmt.Errorf("directory entry too short to decode")}
		}
		nameLen := int(body[10])
		if 11+nameLen > len(body) {
			return &FSError{Kind: ErrFormatViolation, Op: "scan_directory",
				Err: fmt.Errorf("directory entry name length %d overruns entry body", nameLen)}
		}

		de := DirectoryEntry{
			Valid: true,
			Entry: FileEntry{
				SerialNumber: SerialNumber{
					Word1: binary.BigEndian.Uint16(body[0:2]),
					Word2: binary.BigEndian.Uint16(body[2:4]),
				},
				Version:   binary.BigEndian.Uint16(body[4:6]),
				LeaderVDA: VDA(binary.BigEndian.Uint16(body[8:10])),
			},
			Filename: decodePascalString(body, 10),
		}

		result, err := cb(de)
		if err != nil {
			return err
		}
		switch result {
		case ScanContinue:
			continue
		case ScanStop:
			return nil
		default:
			return &FSError{Kind: ErrFormatViolation, Op: "scan_directory",
				Err: fmt.Errorf("callback aborted")}
		}
	}
}

// findInDirectory scans dirEntry for a name matching query, using a
// length-bounded prefix comparison rather than full equality (spec
// section 9: the source's find_file uses strncmp over the query
// length, and this is documented, deliberately preserved behavior).
func findInDirectory(s *PageStore, dirEntry FileEntry, query string) (DirectoryEntry, error) {
	var found DirectoryEntry
	var ok bool

	err := ScanDirectory(s, dirEntry, func(de DirectoryEntry) (ScanResult, error) {
		if len(de.Filename) < len(query) {
			return ScanContinue, nil
		}
		if bytes.HasPrefix([]byte(de.Filename), []byte(query)) {
			found = de
			ok = true
			return ScanStop, nil
		}
		return ScanContinue, nil
	})
	if err != nil {
		return DirectoryEntry{}, err
	}
	if !ok {
		return DirectoryEntry{}, &FSError{Kind: ErrNotFound, Op: "find_in_directory",
			Err: fmt.Errorf("%q not found", query)}
	}
	return found, nil
}

// FileEntryFromLeader converts a bare leader VDA into a FileEntry by
// reading the leader page's own serial number and version
// (original_source/src/fs.c's fs_file_entry, spec section 4.9).
func FileEntryFromLeader(s *PageStore, leaderVDA VDA) (FileEntry, error) {
	leader, err := s.Page(leaderVDA)
	if err != nil {
		return FileEntry{}, err
	}
	if !leader.Label.IsLeader() {
		return FileEntry{}, &FSError{Kind: ErrFormatViolation, Op: "file_entry",
			Err: fmt.Errorf("vda %d is not a leader page", leaderVDA)}
	}
	return FileEntry{
		SerialNumber: leader.Label.SerialNumber,
		Version:      leader.Label.Version,
		LeaderVDA:    leaderVDA,
	}, nil
}

// FindFile resolves a hierarchical Alto pathname to a FileEntry
// (spec section 4.8). '<' resets to the root and advances; a run of
// characters up to the next '<', '>', or end of string is a name
// component; a name followed by '>' must resolve to a directory to
// descend into, otherwise it is the final component.
func FindFile(s *PageStore, path string) (FileEntry, error) {
	current, err := FileEntryFromLeader(s, RootLeaderVDA)
	if err != nil {
		return FileEntry{}, err
	}

	i := 0
	for i < len(path) {
		if path[i] == '<' {
			current, err = FileEntryFromLeader(s, RootLeaderVDA)
			if err != nil {
				return FileEntry{}, err
			}
			i++
			continue
		}

		start := i
		for i < len(path) && path[i] != '<' && path[i] != '>' {
			i++
		}
		name := path[start:i]
		if len(name) == 0 {
			return FileEntry{}, &FSError{Kind: ErrInvalidArgument, Op: "find_file",
				Err: fmt.Errorf("empty path component in %q", path)}
		}
		if len(name) > 39 {
			return FileEntry{}, &FSError{Kind: ErrInvalidArgument, Op: "find_file",
				Err: fmt.Errorf("path component %q longer than 39 bytes", name)}
		}

		de, err := findInDirectory(s, current, name)
		if err != nil {
			return FileEntry{}, err
		}

		if i < len(path) && path[i] == '>' {
			if !de.Entry.SerialNumber.IsDirectory() {
				return FileEntry{}, &FSError{Kind: ErrNotFound, Op: "find_file",
					Err: fmt.Errorf("%q is not a directory", name)}
			}
			current = de.Entry
			i++
			continue
		}

		return de.Entry, nil
	}

	return current, nil
}

// ScavengeFile scans every live leader page in the image directly,
// ignoring directory structure, and succeeds only if exactly one
// live leader's filename matches name (spec section 4.8). It is the
// fallback used when directory linkage is corrupt.
func ScavengeFile(s *PageStore, name string) (FileEntry, error) {
	var matches []FileEntry

	for i := 0; i < s.Len(); i++ {
		page := &s.Pages[i]
		if !page.Label.IsLive() || !page.Label.IsLeader() {
			continue
		}
		nameLen := int(page.Data[offsetFilename])
		if nameLen <= 0 || nameLen >= 40 {
			continue
		}
		fname := decodePascalString(page.Data[:], offsetFilename)
		if fname != name {
			continue
		}
		matches = append(matches, FileEntry{
			SerialNumber: page.Label.SerialNumber,
			Version:      page.Label.Version,
			LeaderVDA:    VDA(i),
		})
	}

	switch len(matches) {
	case 0:
		return FileEntry{}, &FSError{Kind: ErrNotFound, Op: "scavenge_file",
			Err: fmt.Errorf("no leader named %q found", name)}
	case 1:
		return matches[0], nil
	default:
		return FileEntry{}, &FSError{Kind: ErrNotFound, Op: "scavenge_file",
			Err: fmt.Errorf("%d leaders named %q found, ambiguous", len(matches), name)}
	}
}
