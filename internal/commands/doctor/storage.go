package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/hay-kot/formrelay/internal/core/record"
)

// StorageCheck verifies that the record document can be read and that its
// directory accepts new files.
type StorageCheck struct {
	path  string
	store record.Store
}

// NewStorageCheck creates a storage check for the document at path, read
// through store.
func NewStorageCheck(path string, store record.Store) *StorageCheck {
	return &StorageCheck{path: path, store: store}
}

func (c *StorageCheck) Name() string {
	return "Storage"
}

func (c *StorageCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		result.pass("Document", "not created yet, will be created on first submission")
	case err != nil:
		result.fail("Document", err.Error())
		return result
	case info.IsDir():
		result.fail("Document", c.path+" is a directory")
		return result
	default:
		doc, err := c.store.Document(ctx)
		if err != nil {
			result.fail("Document", err.Error())
		} else {
			result.pass("Document", fmt.Sprintf("%d record(s), %s", len(doc), humanize.IBytes(uint64(info.Size()))))
		}
	}

	result.Items = append(result.Items, checkWritableDir(filepath.Dir(c.path)))
	return result
}

// checkWritableDir reports whether dir, or its nearest existing ancestor,
// accepts new files.
func checkWritableDir(dir string) CheckItem {
	const label = "Directory"

	probeDir := dir
	for {
		info, err := os.Stat(probeDir)
		if err == nil {
			if !info.IsDir() {
				return CheckItem{Label: label, Status: StatusFail, Detail: probeDir + " is not a directory"}
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return CheckItem{Label: label, Status: StatusFail, Detail: err.Error()}
		}
		parent := filepath.Dir(probeDir)
		if parent == probeDir {
			return CheckItem{Label: label, Status: StatusFail, Detail: "no existing parent for " + dir}
		}
		probeDir = parent
	}

	f, err := os.CreateTemp(probeDir, ".formrelay-doctor-*")
	if err != nil {
		return CheckItem{Label: label, Status: StatusFail, Detail: fmt.Sprintf("%s is not writable: %v", probeDir, err)}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	if probeDir != dir {
		return CheckItem{Label: label, Status: StatusWarn, Detail: dir + " does not exist yet, it will be created"}
	}
	return CheckItem{Label: label, Status: StatusPass, Detail: dir + " is writable"}
}
