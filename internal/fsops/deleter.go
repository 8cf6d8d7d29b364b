package fsops

import "io/fs"

// Deleter abstracts the filesystem calls made during a deletion pass.
// Tests swap in FakeDeleter to inject failures.
type Deleter interface {
	Lstat(path string) (fs.FileInfo, error)
	Stat(path string) (fs.FileInfo, error)
	Remove(path string) error
}
