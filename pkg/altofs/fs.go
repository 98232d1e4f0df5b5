package altofs

import (
	"fmt"
	"io"
	"os"
)

// FS is the public facade composing the lower layers into the
// operations spec section 4.9 names: find/scan/info/length/extract/
// replace. It borrows a *PageStore for its lifetime and adds no
// state of its own, following the ownership model of spec section 3.
type FS struct {
	Store *PageStore
}

// OpenImage loads an Alto disk image from path under geometry dg and
// wraps it in an FS.
func OpenImage(path string, dg Geometry) (*FS, error) {
	store, err := LoadImage(path, dg)
	if err != nil {
		return nil, err
	}
	return &FS{Store: store}, nil
}

// Save writes the current in-memory image back out to path.
func (fs *FS) Save(path string) error {
	return fs.Store.SaveImage(path)
}

// Check runs the whole-image integrity checker over the current
// state of the filesystem.
func (fs *FS) Check() []error {
	return CheckIntegrity(fs.Store)
}

// Find resolves a hierarchical pathname to a FileEntry. Per-component
// length is validated by FindFile itself (spec section 4.8/8 caps each
// name component at 39 bytes, not the whole path).
func (fs *FS) Find(path string) (FileEntry, error) {
	return FindFile(fs.Store, path)
}

// Scavenge falls back to a whole-image leader scan when directory
// linkage is corrupt.
func (fs *FS) Scavenge(name string) (FileEntry, error) {
	return ScavengeFile(fs.Store, name)
}

// FileEntry converts a bare leader VDA into a FileEntry.
func (fs *FS) FileEntry(leaderVDA VDA) (FileEntry, error) {
	return FileEntryFromLeader(fs.Store, leaderVDA)
}

// FileLength determines a file's length in bytes by opening it and
// reading to end of chain with a nil destination.
func (fs *FS) FileLength(fe FileEntry) (int, error) {
	of, err := Open(fs.Store, fe, false)
	if err != nil {
		return 0, err
	}
	total := 0
	buf := make([]byte, PageDataSize)
	for {
		n, err := of.Read(buf, len(buf))
		if err != nil {
			return 0, err
		}
		total += n
		if n == 0 {
			break
		}
	}
	return total, nil
}

// FileInfo returns the leader metadata for fe.
func (fs *FS) FileInfo(fe FileEntry) (FileInfo, error) {
	leader, err := fs.Store.Page(fe.LeaderVDA)
	if err != nil {
		return FileInfo{}, err
	}
	if !leader.Label.IsLeader() {
		return FileInfo{}, &FSError{Kind: ErrFormatViolation, Op: "file_info",
			Err: fmt.Errorf("vda %d is not a leader page", fe.LeaderVDA)}
	}
	return DecodeFileInfo(leader), nil
}

// ScanFilesFunc is invoked once per live file found by ScanFiles.
type ScanFilesFunc func(fe FileEntry) (ScanResult, error)

// ScanFiles walks every live leader page in the image once, calling
// cb for each (the whole-filesystem analogue of ScanDirectory).
func (fs *FS) ScanFiles(cb ScanFilesFunc) error {
	for i := 0; i < fs.Store.Len(); i++ {
		page := &fs.Store.Pages[i]
		if !page.Label.IsLive() || !page.Label.IsLeader() {
			continue
		}
		fe := FileEntry{
			SerialNumber: page.Label.SerialNumber,
			Version:      page.Label.Version,
			LeaderVDA:    VDA(i),
		}
		result, err := cb(fe)
		if err != nil {
			return err
		}
		switch result {
		case ScanContinue:
			continue
		case ScanStop:
			return nil
		default:
			return &FSError{Kind: ErrFormatViolation, Op: "scan_files",
				Err: fmt.Errorf("callback aborted")}
		}
	}
	return nil
}

// ScanDirectory walks the entries of the directory named by fe.
func (fs *FS) ScanDirectory(fe FileEntry, cb ScanDirectoryFunc) error {
	return ScanDirectory(fs.Store, fe, cb)
}

// ExtractFile opens fe (excluding its leader) and copies its content
// to a newly created host file at outputPath (spec section 4.9).
// Host file I/O is scoped: the destination is closed on every exit
// path.
func (fs *FS) ExtractFile(fe FileEntry, outputPath string) error {
	of, err := Open(fs.Store, fe, false)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &FSError{Kind: ErrIO, Op: "extract_file",
			Err: fmt.Errorf("create %s: %w", outputPath, err)}
	}
	defer out.Close()

	buf := make([]byte, PageDataSize)
	for {
		n, err := of.Read(buf, len(buf))
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if _, err := out.Write(buf[:n]); err != nil {
			return &FSError{Kind: ErrIO, Op: "extract_file",
				Err: fmt.Errorf("write %s: %w", outputPath, err)}
		}
	}
	return nil
}

// ReplaceFile opens fe (excluding its leader), overwrites its content
// with the bytes read from inputPath (allocating pages as needed),
// then trims any leftover tail pages (spec section 4.9).
func (fs *FS) ReplaceFile(fe FileEntry, inputPath string) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return &FSError{Kind: ErrIO, Op: "replace_file",
			Err: fmt.Errorf("open %s: %w", inputPath, err)}
	}
	defer in.Close()

	of, err := Open(fs.Store, fe, false)
	if err != nil {
		return err
	}

	buf := make([]byte, PageDataSize)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := of.Write(buf[:n], true); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return &FSError{Kind: ErrIO, Op: "replace_file",
				Err: fmt.Errorf("read %s: %w", inputPath, err)}
		}
	}

	return of.Trim()
}
