package altofs

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// metaWords is the count of little-endian 16-bit words making up
// each page's on-disk header+label region (header: 2 words, label:
// next_rda, prev_rda, nbytes, file_page_number, version,
// serial_number.word1, serial_number.word2 -> 7 words). The leading
// word of the in-memory layout (page_vda) is not part of this region:
// it is synthesized/discarded separately (spec section 4.2/6).
const metaWords = 9

const recordSize = 2 + metaWords*2 + PageDataSize

// LoadImage reads a flat Alto disk image from path under geometry dg
// and returns the reconstructed page store.
//
// Host file I/O is scoped: the file descriptor is closed on every
// exit path, including error paths (spec section 5).
func LoadImage(path string, dg Geometry) (*PageStore, error) {
	store, err := NewPageStore(dg)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, &FSError{Kind: ErrIO, Op: "load_image",
			Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer unix.Close(fd)

	buf := make([]byte, recordSize)
	var offset int64

	for vda := 0; vda < store.Len(); vda++ {
		n, err := readFull(fd, buf, offset)
		if err != nil {
			return nil, &FSError{Kind: ErrIO, Op: "load_image",
				Err: fmt.Errorf("%s: reading page %d: %w", path, vda, err)}
		}
		if n < len(buf) {
			return nil, &FSError{Kind: ErrIO, Op: "load_image",
				Err: fmt.Errorf("%s: premature end of file at page %d", path, vda)}
		}
		offset += int64(n)

		page := &store.Pages[vda]
		decodePage(buf, page)
	}

	// Confirm EOF: a further read must return zero bytes.
	tail := make([]byte, 1)
	n, err := unix.Pread(fd, tail, offset)
	if err != nil {
		return nil, &FSError{Kind: ErrIO, Op: "load_image",
			Err: fmt.Errorf("%s: checking for trailing data: %w", path, err)}
	}
	if n != 0 {
		return nil, &FSError{Kind: ErrIO, Op: "load_image",
			Err: fmt.Errorf("%s: extra data at end of image", path)}
	}

	return store, nil
}

// SaveImage writes the page store back out to path in the same flat
// format LoadImage reads. The synthesized leading word of each
// record is the VDA's low byte followed by its high byte.
func (s *PageStore) SaveImage(path string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0644)
	if err != nil {
		return &FSError{Kind: ErrIO, Op: "save_image",
			Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer unix.Close(fd)

	buf := make([]byte, recordSize)
	var offset int64

	for vda := 0; vda < s.Len(); vda++ {
		encodePage(&s.Pages[vda], VDA(vda), buf)
		n, err := unix.Pwrite(fd, buf, offset)
		if err != nil {
			return &FSError{Kind: ErrIO, Op: "save_image",
				Err: fmt.Errorf("%s: writing page %d: %w", path, vda, err)}
		}
		if n != len(buf) {
			return &FSError{Kind: ErrIO, Op: "save_image",
				Err: fmt.Errorf("%s: short write at page %d", path, vda)}
		}
		offset += int64(n)
	}

	if err := unix.Fsync(fd); err != nil {
		return &FSError{Kind: ErrIO, Op: "save_image",
			Err: fmt.Errorf("%s: fsync: %w", path, err)}
	}

	return nil
}

func readFull(fd int, buf []byte, offset int64) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Pread(fd, buf[total:], offset+int64(total))
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

// decodePage parses one on-disk record into page. The leading two
// bytes (synthesized VDA on disk) are discarded; page.Header and
// page.Label are read little-endian; page.Data is byte-pair-swapped
// relative to its on-disk encoding.
func decodePage(rec []byte, page *Page) {
	meta := rec[2 : 2+metaWords*2]

	page.Header.Zero = binary.LittleEndian.Uint16(meta[0:2])
	page.Header.RDA = RDA(binary.LittleEndian.Uint16(meta[2:4]))
	page.Label.NextRDA = RDA(binary.LittleEndian.Uint16(meta[4:6]))
	page.Label.PrevRDA = RDA(binary.LittleEndian.Uint16(meta[6:8]))
	page.Label.NBytes = binary.LittleEndian.Uint16(meta[8:10])
	page.Label.FilePageNumber = binary.LittleEndian.Uint16(meta[10:12])
	page.Label.Version = binary.LittleEndian.Uint16(meta[12:14])
	page.Label.SerialNumber.Word1 = binary.LittleEndian.Uint16(meta[14:16])
	page.Label.SerialNumber.Word2 = binary.LittleEndian.Uint16(meta[16:18])

	data := rec[2+metaWords*2:]
	for k := 0; k < PageDataSize; k++ {
		page.Data[k] = data[k^1]
	}
}

// encodePage serializes page into rec, synthesizing the leading word
// as vda's low byte followed by its high byte.
func encodePage(page *Page, vda VDA, rec []byte) {
	rec[0] = byte(vda)
	rec[1] = byte(vda >> 8)

	meta := rec[2 : 2+metaWords*2]
	binary.LittleEndian.PutUint16(meta[0:2], page.Header.Zero)
	binary.LittleEndian.PutUint16(meta[2:4], uint16(page.Header.RDA))
	binary.LittleEndian.PutUint16(meta[4:6], uint16(page.Label.NextRDA))
	binary.LittleEndian.PutUint16(meta[6:8], uint16(page.Label.PrevRDA))
	binary.LittleEndian.PutUint16(meta[8:10], page.Label.NBytes)
	binary.LittleEndian.PutUint16(meta[10:12], page.Label.FilePageNumber)
	binary.LittleEndian.PutUint16(meta[12:14], page.Label.Version)
	binary.LittleEndian.PutUint16(meta[14:16], page.Label.SerialNumber.Word1)
	binary.LittleEndian.PutUint16(meta[16:18], page.Label.SerialNumber.Word2)

	data := rec[2+metaWords*2:]
	for k := 0; k < PageDataSize; k++ {
		data[k^1] = page.Data[k]
	}
}
