//go:build integration
// +build integration

package scripts

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/konexhq/chatbridge/bridge/db"
	"github.com/konexhq/chatbridge/bridge/engine/adapters"
	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

func must(err error, msg string) {
	if err != nil {
		log.Fatalf("%s: %v", msg, err)
	}
}

// RunSmokeLibSQL opens an embedded database, applies the migrations and
// round-trips a conversation through the store adapter.
func RunSmokeLibSQL() {
	fmt.Println("Smoke test: embedded libsql persistence")
	tmp := "./smoke.db"
	defer os.Remove(tmp)

	dbconn, err := db.ConnectToDB(tmp)
	must(err, "connect")
	defer dbconn.Close()

	var v int
	err = dbconn.QueryRow("SELECT 1").Scan(&v)
	must(err, "basic SELECT")
	if v != 1 {
		log.Fatalf("basic SELECT returned %v", v)
	}
	fmt.Println("OK: basic SQL")

	must(adapters.Migrate(dbconn), "migrations")
	fmt.Println("OK: migrations applied")

	ctx := context.Background()
	store := adapters.NewLibSQLStore(dbconn)

	must(store.SaveTurn(ctx, "smoke_user", ports.Turn{
		Role: "user", Content: "hello", CreatedAt: time.Now().UTC(),
	}), "save user turn")
	must(store.SaveTurn(ctx, "smoke_user", ports.Turn{
		Role: "assistant", Content: "hi there", CreatedAt: time.Now().UTC(),
	}), "save assistant turn")

	turns, err := store.History(ctx, "smoke_user", 10)
	must(err, "load history")
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		log.Fatalf("history mismatch: %+v", turns)
	}
	fmt.Println("OK: turn round-trip")

	must(store.SaveProfile(ctx, "smoke_user", map[string]any{"city": "Jacmel"}), "save profile")
	profile, err := store.Profile(ctx, "smoke_user")
	must(err, "load profile")
	if profile["city"] != "Jacmel" {
		log.Fatalf("profile mismatch: %+v", profile)
	}
	fmt.Println("OK: profile round-trip")

	if !store.CheckHealth(ctx) {
		log.Fatal("health check failed")
	}
	fmt.Println("OK: health check")

	fmt.Println("Smoke checks completed.")
}
