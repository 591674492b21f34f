package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DUYLINH1402/orderfood-client/internal/client"
	"github.com/DUYLINH1402/orderfood-client/internal/config"
	"github.com/DUYLINH1402/orderfood-client/internal/logging"
	"github.com/DUYLINH1402/orderfood-client/internal/models"
	"github.com/DUYLINH1402/orderfood-client/internal/storage"
	remote "github.com/DUYLINH1402/orderfood-client/internal/sync"
)

func main() {
	var (
		action  = flag.String("action", "show", "show|add|remove|clear|favorites|toggle-fav|points|coupons|chat|logout")
		foodID  = flag.Int64("food", 0, "food id")
		variant = flag.Int64("variant", -1, "variant id, -1 for none")
		qty     = flag.Int("qty", 1, "quantity")
		name    = flag.String("name", "", "food name (add)")
		price   = flag.Int64("price", 0, "unit price (add)")
		message = flag.String("message", "", "chat message")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	var sealer *storage.Sealer
	if cfg.SealKey != "" {
		sealer, err = storage.NewSealer([]byte(cfg.SealKey))
		if err != nil {
			log.Fatalf("seal key: %v", err)
		}
	}
	st, err := storage.Open(cfg.StoragePath, sealer)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}

	// The backend flavor is decided here, once; nothing downstream looks at
	// the flag again.
	var backend remote.Backend
	switch cfg.Backend {
	case config.BackendDocument:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		backend = remote.NewDocument(redis.NewClient(opts))
	default:
		backend = remote.NewREST(cfg.APIBaseURL, cfg.RequestTimeout)
	}
	backend = remote.WithRetry(backend, remote.DefaultRetryConfig(cfg.FetchRetries))

	c := client.New(st, backend, logger, client.Options{FavoritesDedupe: cfg.FavoritesDedupe})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Bootstrap(ctx); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	notifications, stop := c.Notifications()
	defer stop()
	go func() {
		for n := range notifications {
			logger.Info("notification", "level", n.Level, "kind", n.Kind, "message", n.Message)
		}
	}()

	ref := models.ItemRef{FoodID: *foodID}
	if *variant >= 0 {
		v := *variant
		ref.VariantID = &v
	}

	switch *action {
	case "show":
		dump(c.Cart())
	case "add":
		item := models.CartItem{ItemRef: ref, FoodName: *name, Price: *price, Quantity: *qty}
		if err := c.AddToCart(ctx, item); err != nil {
			log.Fatalf("add to cart: %v", err)
		}
		dump(c.Cart())
	case "remove":
		if err := c.RemoveFromCart(ctx, ref); err != nil {
			log.Fatalf("remove from cart: %v", err)
		}
		dump(c.Cart())
	case "clear":
		if err := c.ClearCart(ctx); err != nil {
			log.Fatalf("clear cart: %v", err)
		}
	case "favorites":
		dump(c.Favorites())
	case "toggle-fav":
		if err := c.ToggleFavorite(ctx, ref); err != nil {
			log.Fatalf("toggle favorite: %v", err)
		}
		dump(c.Favorites())
	case "points":
		if err := c.RefreshPoints(ctx); err != nil {
			log.Fatalf("refresh points: %v", err)
		}
		if err := c.LoadPointsHistory(ctx); err != nil {
			log.Fatalf("points history: %v", err)
		}
		dump(c.Points())
	case "coupons":
		coupons, err := c.AvailableCoupons(ctx)
		if err != nil {
			log.Fatalf("coupons: %v", err)
		}
		dump(coupons)
	case "chat":
		reply, err := c.SendChatMessage(ctx, *message)
		if err != nil {
			log.Fatalf("chat: %v", err)
		}
		fmt.Println(reply)
	case "logout":
		c.Logout()
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		os.Exit(2)
	}
}

func dump(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode output: %v", err)
	}
	fmt.Println(string(out))
}
