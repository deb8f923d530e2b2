package array

import (
	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/status"
)

// GroupFileName is the sentinel marking a directory as a group: a named
// collection of arrays and nested groups with no schema or fragments of
// its own, mirroring how ArrayFileName marks an array directory.
const GroupFileName = "__group"

// CreateWorkspace creates an empty directory at path: the root under
// which groups and arrays get created. A workspace carries no sentinel
// file of its own; it is just a writable directory, so any filesystem
// CreateDir is free to double as one.
func CreateWorkspace(filesystem fs.Filesystem, path string) error {
	if filesystem.IsDir(path) {
		return status.New(status.AlreadyExists, "workspace already exists at %s", path)
	}
	if err := filesystem.CreateDir(path); err != nil {
		return status.Wrap(status.IoError, err, "create workspace directory")
	}
	return nil
}

// CreateGroup creates a group directory at path, marked with
// GroupFileName so ListWorkspaces (and any future group-aware tooling)
// can tell it apart from a plain workspace directory or an array.
func CreateGroup(filesystem fs.Filesystem, path string) error {
	if filesystem.IsFile(fs.Join(path, ArrayFileName)) {
		return status.New(status.AlreadyExists, "an array already exists at %s", path)
	}
	if filesystem.IsFile(fs.Join(path, GroupFileName)) {
		return status.New(status.AlreadyExists, "group already exists at %s", path)
	}
	if err := filesystem.CreateDir(path); err != nil {
		return status.Wrap(status.IoError, err, "create group directory")
	}
	return filesystem.CreateFile(fs.Join(path, GroupFileName), nil)
}

// ListWorkspaces lists the immediate subdirectories of root that are
// plain workspace directories: neither an array (ArrayFileName) nor a
// group (GroupFileName), i.e. still open for a caller to create a
// workspace, group or array inside of.
func ListWorkspaces(filesystem fs.Filesystem, root string) ([]string, error) {
	dirs, err := filesystem.ListDirs(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range dirs {
		full := fs.Join(root, d)
		if filesystem.IsFile(fs.Join(full, ArrayFileName)) || filesystem.IsFile(fs.Join(full, GroupFileName)) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
