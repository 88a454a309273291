package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlist(t *testing.T) {
	f := newFixture(t)
	wishlist := NewWishlistService(f.db, f.carts)
	rose := f.createProduct(t, "rose", "100", 5)
	tulip := f.createProduct(t, "tulip", "50", 5)

	_, err := wishlist.Add(f.ctx, f.user.ID, rose.ID)
	require.NoError(t, err)
	_, err = wishlist.Add(f.ctx, f.user.ID, rose.ID)
	require.NoError(t, err, "adding twice is a no-op")
	_, err = wishlist.Add(f.ctx, f.user.ID, tulip.ID)
	require.NoError(t, err)

	_, err = wishlist.Add(f.ctx, f.user.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := wishlist.List(f.ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Product)

	view, err := wishlist.MoveToCart(f.ctx, f.user.ID, rose.ID, AddItemInput{})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)

	items, err = wishlist.List(f.ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, tulip.ID, items[0].ProductID)

	_, err = wishlist.MoveToCart(f.ctx, f.user.ID, rose.ID, AddItemInput{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.catalog.DeleteProduct(f.ctx, tulip.ID))
	items, err = wishlist.List(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, wishlist.Remove(f.ctx, f.user.ID, tulip.ID), ErrNotFound)
}
