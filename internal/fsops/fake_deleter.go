package fsops

import (
	"io/fs"
	"os"
)

// FakeDeleter implements Deleter for testing.
// Lstat and Stat read the real filesystem; Remove records the call and either returns
// the error registered for the path or, when Passthrough is set, removes it.
type FakeDeleter struct {
	Calls       []string
	Errs        map[string]error
	Passthrough bool
}

func (f *FakeDeleter) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

func (f *FakeDeleter) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (f *FakeDeleter) Remove(path string) error {
	f.Calls = append(f.Calls, "rm:"+path)
	if err, ok := f.Errs[path]; ok {
		return err
	}
	if f.Passthrough {
		return os.Remove(path)
	}
	return nil
}
