// Package pagetree implements the page-tree engine: the single JSON
// document holding one page's comment thread, and the atomic operations
// that mutate it under the per-page advisory lock.
package pagetree

import (
	"github.com/google/uuid"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/models"
)

// locate walks a Path through the tree and returns the addressed node. The
// returned pointer aliases the tree itself, so callers mutate fields on it
// directly rather than splicing slices.
func locate(comments []*models.TreeComment, path models.Path) (*models.TreeComment, error) {
	if len(path) == 0 {
		return nil, apperr.BadRequest("empty path")
	}

	level := comments
	for depth, id := range path {
		found := -1
		for i, c := range level {
			if c.ID == id {
				found = i
				break
			}
		}
		if found == -1 {
			return nil, apperr.NotFound("comment", id)
		}
		if depth == len(path)-1 {
			return level[found], nil
		}
		level = level[found].Children
	}

	return nil, apperr.NotFound("comment", path[len(path)-1])
}

// Locate finds the node addressed by path. It does not mutate the tree.
func Locate(tree *models.PageTree, path models.Path) (*models.TreeComment, error) {
	return locate(tree.Comments, path)
}

// childrenSliceFor returns a pointer to the []*TreeComment that should
// receive a new root-level or nested reply, given an optional parent path.
func childrenSliceFor(tree *models.PageTree, parentPath models.Path) (*[]*models.TreeComment, error) {
	if len(parentPath) == 0 {
		return &tree.Comments, nil
	}
	parent, err := Locate(tree, parentPath)
	if err != nil {
		return nil, err
	}
	return &parent.Children, nil
}

// findByID searches the whole tree depth-first for a comment id, returning
// its full path from the root. Used where only a bare comment id is known
// (e.g. GDPR erasure walking a user's comment set) and no validated Path is
// available.
func findByID(comments []*models.TreeComment, target uuid.UUID, prefix models.Path) (models.Path, *models.TreeComment, bool) {
	for _, c := range comments {
		path := append(append(models.Path{}, prefix...), c.ID)
		if c.ID == target {
			return path, c, true
		}
		if found, node, ok := findByID(c.Children, target, path); ok {
			return found, node, true
		}
	}
	return nil, nil, false
}

// validatePath reports apperr.BadRequest if any id in path is the nil UUID.
func validatePath(path models.Path) error {
	if len(path) == 0 {
		return nil
	}
	for _, id := range path {
		if id == uuid.Nil {
			return apperr.BadRequest("path contains an empty id")
		}
	}
	return nil
}
