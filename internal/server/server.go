package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/larder/internal/blob"
	"github.com/dukerupert/larder/internal/handler"
	"github.com/dukerupert/larder/internal/live"
	"github.com/dukerupert/larder/internal/middleware"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/dukerupert/larder/internal/purchase"
	"github.com/dukerupert/larder/internal/push"
	"github.com/dukerupert/larder/internal/recipe"
	"github.com/dukerupert/larder/internal/store"
	"github.com/shopspring/decimal"
)

// Options carries the optional integrations. Zero values disable them.
type Options struct {
	Recipe            recipe.Config
	Blob              blob.Config
	Push              push.Config
	ExpiringDays      int
	LowStockThreshold decimal.Decimal
}

type Server struct {
	hub           *live.Hub
	feed          *live.Feed
	collections   []*handler.CollectionHandler
	shoppingH     *handler.ShoppingHandler
	recipeH       *handler.RecipeHandler
	pushH         *handler.PushHandler
	userStore     *store.UserStore
	rateLimiter   *middleware.RateLimiter
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) (*Server, error) {
	hub := live.NewHub(logger)
	feed := live.NewFeed(hub, logger)

	userStore := store.NewUserStore(db)
	shoppingStore := store.NewShoppingStore(db)
	inventoryStore := store.NewInventoryStore(db)
	budgetStore := store.NewBudgetStore(db)
	priceStore := store.NewPriceStore(db)

	images := blob.New(opts.Blob)

	feed.Register(model.CollectionShopping, live.ListSource(handler.ResolveImages(images, shoppingStore.List)))
	feed.Register(model.CollectionInventory, live.ListSource(inventoryStore.List))
	feed.Register(model.CollectionBudget, live.ListSource(budgetStore.List))
	feed.Register(model.CollectionPrices, live.ListSource(priceStore.List))

	// Every shopping snapshot is reconciled into the inventory.
	saga := purchase.New(shoppingStore, inventoryStore, logger)
	saga.SetNotifier(feed)
	feed.Listen(model.CollectionShopping, saga)

	defaults := projection.DefaultSettings(time.Time{})
	defaults.ExpiringDays = opts.ExpiringDays
	defaults.LowStockThreshold = opts.LowStockThreshold

	specs := []struct {
		c    model.Collection
		repo handler.Repo
		view handler.Viewer
	}{
		{model.CollectionShopping, handler.ShoppingRepo(shoppingStore, images), handler.ViewOf(projection.Shopping())},
		{model.CollectionInventory, handler.InventoryRepo(inventoryStore), handler.ViewOf(projection.Inventory())},
		{model.CollectionBudget, handler.BudgetRepo(budgetStore), handler.ViewOf(projection.Budget())},
		{model.CollectionPrices, handler.PriceRepo(priceStore), handler.PriceView},
	}
	var collections []*handler.CollectionHandler
	for _, s := range specs {
		h, err := handler.NewCollectionHandler(s.c, s.repo, s.view, feed, defaults, logger.With("component", string(s.c)))
		if err != nil {
			return nil, fmt.Errorf("collection handler: %w", err)
		}
		collections = append(collections, h)
	}

	pushLogger := logger.With("component", "push")
	var pushH *handler.PushHandler
	var pushSched *push.Scheduler
	if opts.Push.Enabled() {
		pushStore := store.NewPushStore(db)
		pushSvc := push.NewService(opts.Push)
		pushSched = push.NewScheduler(pushSvc, pushStore, inventoryStore.List, push.SchedulerConfig{
			Interval:          time.Minute,
			ExpiringDays:      opts.ExpiringDays,
			LowStockThreshold: opts.LowStockThreshold,
		}, logger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, pushLogger)
	}

	return &Server{
		hub:           hub,
		feed:          feed,
		collections:   collections,
		shoppingH:     handler.NewShoppingHandler(shoppingStore, images, feed, logger.With("component", "shopping")),
		recipeH:       handler.NewRecipeHandler(recipe.NewService(opts.Recipe), logger.With("component", "recipe")),
		pushH:         pushH,
		userStore:     userStore,
		rateLimiter:   middleware.NewRateLimiter(),
		pushScheduler: pushSched,
		logger:        logger,
	}, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushScheduler returns nil when push is not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Hub() *live.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireUser := middleware.RequireUser(s.userStore, s.logger.With("component", "auth"))
	outerMux.Handle("/api/", requireUser(protectedMux))
	outerMux.Handle("GET /ws", requireUser(live.Handler(s.hub)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`+"\n", s.hub.ClientCount())
}

func (s *Server) rateLimited(h http.HandlerFunc, limit int) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.UserKey, limit, time.Minute)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	for _, h := range s.collections {
		base := "/api/" + string(h.Collection())
		mux.HandleFunc("GET "+base, h.List)
		mux.HandleFunc("POST "+base, h.Create)
		mux.HandleFunc("GET "+base+"/view", h.View)
		mux.HandleFunc("GET "+base+"/{id}", h.Get)
		mux.HandleFunc("PATCH "+base+"/{id}", h.Update)
		mux.HandleFunc("DELETE "+base+"/{id}", h.Delete)
	}

	mux.HandleFunc("POST /api/shopping/{id}/purchase", s.shoppingH.Purchase)
	mux.Handle("PUT /api/shopping/{id}/image", s.rateLimited(s.shoppingH.UploadImage, 30))

	mux.Handle("GET /api/recipes", s.rateLimited(s.recipeH.Search, 20))

	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
		mux.HandleFunc("PUT /api/push/preferences", s.pushH.UpdatePreferences)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}
}
