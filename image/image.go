// Package image implements the read-only boot-block/inode/data-block image
// reader (spec.md component C1). The image is an immutable in-memory byte
// slice -- the emulated equivalent of a RAM-mapped image -- and the format
// is bit-exact with spec.md §6: a 4 KiB boot block, followed by inode_count
// 4 KiB inodes, followed by contiguous 4 KiB data blocks.
//
// Grounded on archivefs/archivefs.go's Open/Path shape: a small, read-only
// filesystem facade with no notion of writing, the same contract this
// package needs for the kernel's single immutable image.
package image

import (
	"encoding/binary"

	"github.com/opsys391/minikernel/kernelerror"
)

const (
	blockSize      = 4096
	maxDentries    = 63
	dentrySize     = 64
	nameSize       = 32
	bootReserved   = 52
	dentryReserved = 24
	maxBlocksPerInode = 1023
)

// Type identifies what kind of file a directory entry refers to.
type Type uint32

const (
	TypeRTC Type = iota
	TypeDirectory
	TypeRegular
)

// Dentry is one directory entry: a name, a type and the inode it refers to.
type Dentry struct {
	Name  string
	Type  Type
	Inode uint32

	raw [nameSize]byte
}

// FS is a parsed, read-only image.
type FS struct {
	raw            []byte
	dentryCount    uint32
	inodeCount     uint32
	dataBlockCount uint32
	dentries       []Dentry
}

// New parses raw as a boot-block/inode/data-block image. The image is
// trusted: out-of-range data-block indices inside an inode are not
// defended against, matching spec.md §4.1.
func New(raw []byte) (*FS, error) {
	if len(raw) < blockSize {
		return nil, kernelerror.New(kernelerror.BadArgument, "image shorter than one block")
	}

	fs := &FS{raw: raw}
	fs.dentryCount = binary.LittleEndian.Uint32(raw[0:4])
	fs.inodeCount = binary.LittleEndian.Uint32(raw[4:8])
	fs.dataBlockCount = binary.LittleEndian.Uint32(raw[8:12])

	n := fs.dentryCount
	if n > maxDentries {
		n = maxDentries
	}

	off := 4 + 4 + 4 + bootReserved
	fs.dentries = make([]Dentry, 0, n)
	for i := uint32(0); i < n; i++ {
		base := off + int(i)*dentrySize
		var d Dentry
		copy(d.raw[:], raw[base:base+nameSize])
		d.Name = cString(d.raw[:])
		d.Type = Type(binary.LittleEndian.Uint32(raw[base+nameSize : base+nameSize+4]))
		d.Inode = binary.LittleEndian.Uint32(raw[base+nameSize+4 : base+nameSize+8])
		fs.dentries = append(fs.dentries, d)
	}

	return fs, nil
}

// cString returns the string up to the first NUL byte, or the whole slice
// if there is none -- a stored name may fill all 32 bytes without a
// terminator, per spec.md §3.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Lookup performs a linear scan over directory entries in directory order.
// A match requires the stored 32-byte name to equal the supplied name under
// both: "equal for len(name) bytes" and "equal for all 32 bytes" (the
// latter compares against name zero-padded to 32 bytes). A query longer
// than 32 bytes never matches -- it is not silently truncated.
func (fs *FS) Lookup(name string) (Dentry, error) {
	if len(name) > nameSize {
		return Dentry{}, kernelerror.New(kernelerror.FileNotFound, name)
	}

	q := []byte(name)
	var q32 [nameSize]byte
	copy(q32[:], q)

	for _, d := range fs.dentries {
		if len(q) > 0 && string(d.raw[:len(q)]) != string(q) {
			continue
		}
		if d.raw != q32 {
			continue
		}
		return d, nil
	}
	return Dentry{}, kernelerror.New(kernelerror.FileNotFound, name)
}

// StatByIndex returns the directory entry at position i, in constant time.
func (fs *FS) StatByIndex(i int) (Dentry, error) {
	if i < 0 || i >= len(fs.dentries) {
		return Dentry{}, kernelerror.New(kernelerror.BadArgument, "dentry index out of range")
	}
	return fs.dentries[i], nil
}

// NumDentries returns the number of directory entries in the image.
func (fs *FS) NumDentries() int {
	return len(fs.dentries)
}

func (fs *FS) inodeOffset(inode uint32) int {
	return blockSize + int(inode)*blockSize
}

func (fs *FS) fileSize(inode uint32) uint32 {
	base := fs.inodeOffset(inode)
	return binary.LittleEndian.Uint32(fs.raw[base : base+4])
}

func (fs *FS) blockIndex(inode uint32, block uint32) uint32 {
	base := fs.inodeOffset(inode)
	off := base + 4 + int(block)*4
	return binary.LittleEndian.Uint32(fs.raw[off : off+4])
}

func (fs *FS) dataBlockOffset(block uint32) int {
	return blockSize + int(fs.inodeCount)*blockSize + int(block)*blockSize
}

// Read reads up to len(buf) bytes from inode starting at offset, returning
// the number of bytes copied. If offset >= file size, 0 bytes are read --
// this is a boundary condition, not an error. Otherwise the number of bytes
// read is min(len(buf), file_size-offset).
func (fs *FS) Read(inode uint32, offset uint32, buf []byte) (int, error) {
	if inode >= fs.inodeCount {
		return 0, kernelerror.New(kernelerror.BadInode, inode)
	}

	size := fs.fileSize(inode)
	if offset >= size {
		return 0, nil
	}

	remaining := size - offset
	want := uint32(len(buf))
	if want > remaining {
		want = remaining
	}

	var written uint32
	cur := offset
	for written < want {
		blockNum := cur / blockSize
		blockOff := cur % blockSize
		chunk := blockSize - blockOff
		left := want - written
		if chunk > left {
			chunk = left
		}

		dataBlock := fs.blockIndex(inode, blockNum)
		srcOff := fs.dataBlockOffset(dataBlock) + int(blockOff)
		copy(buf[written:written+chunk], fs.raw[srcOff:srcOff+int(chunk)])

		written += chunk
		cur += chunk
	}

	return int(written), nil
}

// FileSize returns the byte size recorded in an inode.
func (fs *FS) FileSize(inode uint32) (uint32, error) {
	if inode >= fs.inodeCount {
		return 0, kernelerror.New(kernelerror.BadInode, inode)
	}
	return fs.fileSize(inode), nil
}
