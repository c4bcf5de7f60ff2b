package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/model"
)

func TestReactionService(t *testing.T) {
	repo := newFakeReactionRepo(model.Book{ID: 1, Title: "Dune"}, model.Book{ID: 2, Title: "Emma"})
	svc := NewReactionService(repo, discardLogger())
	ctx := context.Background()
	ana := &auth.Identity{UserID: 7}

	require.NoError(t, svc.Add(ctx, model.Favorite, ana.UserID, 1))
	require.NoError(t, svc.Add(ctx, model.Favorite, ana.UserID, 1))
	require.NoError(t, svc.Add(ctx, model.Like, ana.UserID, 2))

	favs, err := svc.Favorites(ctx, ana, ana.UserID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "Dune", favs[0].Title)

	require.NoError(t, svc.Remove(ctx, model.Favorite, ana.UserID, 1))
	favs, err = svc.Favorites(ctx, ana, ana.UserID)
	require.NoError(t, err)
	assert.Empty(t, favs)

	assert.ErrorIs(t, svc.Add(ctx, model.Like, ana.UserID, 0), apperror.ErrValidation)
	assert.ErrorIs(t, svc.Remove(ctx, model.Like, ana.UserID, -1), apperror.ErrValidation)
	assert.ErrorIs(t, svc.Add(ctx, model.Like, ana.UserID, 99), apperror.ErrNotFound)
}

func TestReactionService_FavoritesVisibility(t *testing.T) {
	repo := newFakeReactionRepo(model.Book{ID: 1, Title: "Dune"})
	svc := NewReactionService(repo, discardLogger())
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, model.Favorite, 7, 1))

	_, err := svc.Favorites(ctx, &auth.Identity{UserID: 8}, 7)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	favs, err := svc.Favorites(ctx, &auth.Identity{UserID: 1, IsAdmin: true}, 7)
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}
