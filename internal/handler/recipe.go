package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/recipe"
)

// RecipeSearcher looks up recipes by free text.
type RecipeSearcher interface {
	Search(ctx context.Context, query string) ([]recipe.Hit, error)
}

type RecipeHandler struct {
	searcher RecipeSearcher
	logger   *slog.Logger
}

func NewRecipeHandler(s RecipeSearcher, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{searcher: s, logger: logger}
}

type recipeResponse struct {
	Hits  []recipe.Hit `json:"hits"`
	Error string       `json:"error,omitempty"`
}

// Search handles GET /api/recipes?q=. Upstream failures answer 502 with an
// empty hit list so callers can keep rendering.
func (h *RecipeHandler) Search(w http.ResponseWriter, r *http.Request) {
	hits, err := h.searcher.Search(r.Context(), r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, recipe.ErrEmptyQuery):
		writeJSON(w, http.StatusBadRequest, recipeResponse{Hits: []recipe.Hit{}, Error: err.Error()})
		return
	case errors.Is(err, recipe.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, recipeResponse{Hits: []recipe.Hit{}, Error: err.Error()})
		return
	case err != nil:
		h.logger.Warn("recipe search", "error", err)
		writeJSON(w, http.StatusBadGateway, recipeResponse{Hits: []recipe.Hit{}, Error: "recipe search failed"})
		return
	}
	if hits == nil {
		hits = []recipe.Hit{}
	}
	writeJSON(w, http.StatusOK, recipeResponse{Hits: hits})
}
