package main

import (
	"fmt"
	"strings"

	"github.com/dukerupert/larder/internal/config"
	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/push"
	"github.com/dukerupert/larder/internal/store"
)

// createToken adds a user and prints its API token. The secret is shown only
// once; the database keeps a bcrypt hash.
func createToken(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	u, token, err := store.NewUserStore(db).Create(name)
	if err != nil {
		return err
	}
	fmt.Printf("user %d (%s)\nLARDER_TOKEN=%s\n", u.ID, u.Name, token)
	return nil
}

func vapidKeys() error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("LARDER_VAPID_PUBLIC_KEY=%s\nLARDER_VAPID_PRIVATE_KEY=%s\n", pub, priv)
	return nil
}
