package altofs

import (
	"encoding/binary"
	"time"
)

// altoEpochOffset is the offset in seconds from the Alto time base to
// the Unix epoch (spec section 6).
const altoEpochOffset = 2117503696

// Leader page data-area offsets (spec section 4.7).
const (
	offsetCreated      = 0
	offsetWritten      = 4
	offsetRead         = 8
	offsetFilename     = 12
	offsetProps        = 52
	offsetSpare        = 472
	offsetPropBegin    = 492
	offsetPropLen      = 493
	offsetConsecutive  = 494
	offsetChangeSN     = 495
	offsetDirHint      = 496
	offsetLastPageHint = 506
)

// FileHint is the leader's back-pointer to its containing directory's
// file entry (spec section 4.7).
type FileHint struct {
	Entry FileEntry
}

// LastPageHint records where a file's last page was, last time it
// was written (spec section 3).
type LastPageHint struct {
	VDA        VDA
	PageNumber uint16
	Pos        uint16
}

// FileInfo is the metadata carried in a file's leader page (spec
// section 3/4.7).
type FileInfo struct {
	Filename       string
	Created        time.Time
	Written        time.Time
	Read           time.Time
	Properties     []byte
	PropertyBegin  byte
	PropertyLength byte
	Consecutive    bool
	ChangeSerial   byte
	DirectoryHint  FileHint
	LastPageHint   LastPageHint
}

func altoTimeToUnix(hi, lo uint16) time.Time {
	word := int32(uint32(hi)<<16 | uint32(lo))
	return time.Unix(int64(word)+altoEpochOffset, 0).UTC()
}

func decodePascalString(data []byte, offset int) string {
	n := int(data[offset])
	if n <= 0 {
		return ""
	}
	if n > 39 {
		n = 39
	}
	if offset+1+n > len(data) {
		n = len(data) - offset - 1
	}
	if n <= 0 {
		return ""
	}
	return string(data[offset+1 : offset+1+n])
}

// DecodeFileInfo reads the leader page's data area at fixed offsets
// and returns the decoded file metadata.
func DecodeFileInfo(leader *Page) FileInfo {
	d := leader.Data[:]

	fi := FileInfo{
		Created: altoTimeToUnix(
			binary.BigEndian.Uint16(d[offsetCreated:offsetCreated+2]),
			binary.BigEndian.Uint16(d[offsetCreated+2:offsetCreated+4])),
		Written: altoTimeToUnix(
			binary.BigEndian.Uint16(d[offsetWritten:offsetWritten+2]),
			binary.BigEndian.Uint16(d[offsetWritten+2:offsetWritten+4])),
		Read: altoTimeToUnix(
			binary.BigEndian.Uint16(d[offsetRead:offsetRead+2]),
			binary.BigEndian.Uint16(d[offsetRead+2:offsetRead+4])),
		Filename:       decodePascalString(d, offsetFilename),
		Properties:     append([]byte(nil), d[offsetProps:offsetSpare]...),
		PropertyBegin:  d[offsetPropBegin],
		PropertyLength: d[offsetPropLen],
		Consecutive:    d[offsetConsecutive] != 0,
		ChangeSerial:   d[offsetChangeSN],
	}

	fi.DirectoryHint = FileHint{Entry: FileEntry{
		SerialNumber: SerialNumber{
			Word1: binary.BigEndian.Uint16(d[offsetDirHint : offsetDirHint+2]),
			Word2: binary.BigEndian.Uint16(d[offsetDirHint+2 : offsetDirHint+4]),
		},
		Version:   binary.BigEndian.Uint16(d[offsetDirHint+4 : offsetDirHint+6]),
		LeaderVDA: VDA(binary.BigEndian.Uint16(d[offsetDirHint+8 : offsetDirHint+10])),
	}}

	fi.LastPageHint = LastPageHint{
		VDA:        VDA(binary.BigEndian.Uint16(d[offsetLastPageHint : offsetLastPageHint+2])),
		PageNumber: binary.BigEndian.Uint16(d[offsetLastPageHint+2 : offsetLastPageHint+4]),
		Pos:        binary.BigEndian.Uint16(d[offsetLastPageHint+4 : offsetLastPageHint+6]),
	}

	return fi
}

// EncodeFileInfo writes fi back into a leader page's data area,
// mirroring DecodeFileInfo's layout. Fields outside those named by
// spec section 4.7 (bytes 52..472 already covered by Properties) are
// left untouched elsewhere in the page.
func EncodeFileInfo(leader *Page, fi FileInfo) {
	d := leader.Data[:]

	putAltoTime := func(offset int, t time.Time) {
		word := uint32(int32(t.Unix() - altoEpochOffset))
		binary.BigEndian.PutUint16(d[offset:offset+2], uint16(word>>16))
		binary.BigEndian.PutUint16(d[offset+2:offset+4], uint16(word))
	}

	putAltoTime(offsetCreated, fi.Created)
	putAltoTime(offsetWritten, fi.Written)
	putAltoTime(offsetRead, fi.Read)

	name := fi.Filename
	if len(name) > 39 {
		name = name[:39]
	}
	d[offsetFilename] = byte(len(name))
	copy(d[offsetFilename+1:offsetFilename+1+len(name)], name)

	if len(fi.Properties) > 0 {
		copy(d[offsetProps:offsetSpare], fi.Properties)
	}
	d[offsetPropBegin] = fi.PropertyBegin
	d[offsetPropLen] = fi.PropertyLength
	if fi.Consecutive {
		d[offsetConsecutive] = 1
	} else {
		d[offsetConsecutive] = 0
	}
	d[offsetChangeSN] = fi.ChangeSerial

	hint := fi.DirectoryHint.Entry
	binary.BigEndian.PutUint16(d[offsetDirHint:offsetDirHint+2], hint.SerialNumber.Word1)
	binary.BigEndian.PutUint16(d[offsetDirHint+2:offsetDirHint+4], hint.SerialNumber.Word2)
	binary.BigEndian.PutUint16(d[offsetDirHint+4:offsetDirHint+6], hint.Version)
	binary.BigEndian.PutUint16(d[offsetDirHint+6:offsetDirHint+8], 0)
	binary.BigEndian.PutUint16(d[offsetDirHint+8:offsetDirHint+10], uint16(hint.LeaderVDA))

	binary.BigEndian.PutUint16(d[offsetLastPageHint:offsetLastPageHint+2], uint16(fi.LastPageHint.VDA))
	binary.BigEndian.PutUint16(d[offsetLastPageHint+2:offsetLastPageHint+4], fi.LastPageHint.PageNumber)
	binary.BigEndian.PutUint16(d[offsetLastPageHint+4:offsetLastPageHint+6], fi.LastPageHint.Pos)
}
