package handler

import (
	"context"

	"github.com/dukerupert/larder/internal/blob"
	"github.com/dukerupert/larder/internal/model"
)

// resolveImage replaces a stored blob handle with a URL that is valid now.
// Plain URLs pass through. A handle that cannot be resolved is dropped from
// the response; the stored value is untouched.
func resolveImage(ctx context.Context, images Images, item model.ShoppingItem) model.ShoppingItem {
	if !blob.IsHandle(item.Image) {
		return item
	}
	if images == nil || !images.Configured() {
		item.Image = ""
		return item
	}
	url, err := images.URL(ctx, item.Image)
	if err != nil {
		url = ""
	}
	item.Image = url
	return item
}

// ResolveImages wraps a shopping list loader so every snapshot carries fresh
// image URLs.
func ResolveImages(images Images, list func(userID int64) ([]model.ShoppingItem, error)) func(userID int64) ([]model.ShoppingItem, error) {
	return func(userID int64) ([]model.ShoppingItem, error) {
		items, err := list(userID)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i] = resolveImage(context.Background(), images, items[i])
		}
		return items, nil
	}
}
