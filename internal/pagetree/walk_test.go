package pagetree

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/models"
)

func TestLocate_FindsNestedNode(t *testing.T) {
	root := newComment(uuid.New(), "root")
	child := newComment(uuid.New(), "child")
	root.Children = append(root.Children, child)
	tree := &models.PageTree{Comments: []*models.TreeComment{root}}

	node, err := Locate(tree, models.Path{root.ID, child.ID})
	require.NoError(t, err)
	require.Equal(t, child.ID, node.ID)
}

func TestLocate_MissingIDNotFound(t *testing.T) {
	tree := &models.PageTree{Comments: []*models.TreeComment{}}
	_, err := Locate(tree, models.Path{uuid.New()})
	require.Error(t, err)
}

func TestLocate_EmptyPathBadRequest(t *testing.T) {
	tree := &models.PageTree{Comments: []*models.TreeComment{}}
	_, err := Locate(tree, models.Path{})
	require.Error(t, err)
}

func TestFindByID_LocatesDeeplyNestedComment(t *testing.T) {
	root := newComment(uuid.New(), "root")
	child := newComment(uuid.New(), "child")
	grandchild := newComment(uuid.New(), "grandchild")
	child.Children = append(child.Children, grandchild)
	root.Children = append(root.Children, child)

	path, node, ok := findByID([]*models.TreeComment{root}, grandchild.ID, nil)
	require.True(t, ok)
	require.Equal(t, grandchild.ID, node.ID)
	require.Equal(t, models.Path{root.ID, child.ID, grandchild.ID}, path)
}

func TestFindByID_NotFound(t *testing.T) {
	_, _, ok := findByID([]*models.TreeComment{}, uuid.New(), nil)
	require.False(t, ok)
}

func TestValidatePath_RejectsNilID(t *testing.T) {
	err := validatePath(models.Path{uuid.Nil})
	require.Error(t, err)
}

func TestValidatePath_EmptyPathAllowed(t *testing.T) {
	require.NoError(t, validatePath(models.Path{}))
}

func TestValidatePath_ValidIDsAllowed(t *testing.T) {
	require.NoError(t, validatePath(models.Path{uuid.New(), uuid.New()}))
}
