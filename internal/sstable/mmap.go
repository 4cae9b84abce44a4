package sstable

import (
	"fmt"
	"os"
	"syscall"
)

// mmapFile maps the full contents of f read-only, backed by the SSTable's
// own file descriptor.
func mmapFile(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sstable: stat: %w", err)
	}
	size := info.Size()
	if size == 0 {
		// syscall.Mmap rejects zero-length mappings. Write always emits at
		// least the Bloom header, so a zero-length file is a damaged one;
		// Open rejects it as truncated once this returns.
		return []byte{}, nil
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("sstable: mmap: %w", err)
	}
	return data, nil
}

func munmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return syscall.Munmap(data)
}
