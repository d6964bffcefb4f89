package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"hemocheck/internal/common"
	"hemocheck/internal/records"
	"hemocheck/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", common.DefaultDataPath, "Data directory path")
		userID   = flag.Int64("user", 0, "User id to inspect")
	)
	flag.Parse()

	dbPath := filepath.Join(*dataPath, "hemocheck.db")
	fmt.Printf("Inspecting data in: %s\n", dbPath)

	// Open storage
	store, err := storage.New(dbPath, records.DefaultHasher)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	acct, err := store.Lookup(ctx, *userID)
	if err != nil {
		log.Fatalf("Failed to look up user %d: %v", *userID, err)
	}
	fmt.Printf("\nUser %d: %s (registered %s)\n", acct.UserID, acct.Email, acct.CreatedAt.Format(records.DateLayout))

	recs, err := store.List(ctx, *userID)
	if err != nil {
		log.Fatalf("Failed to fetch history: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("No saved predictions.")
		return
	}

	fmt.Printf("\n%d saved predictions:\n", len(recs))
	for _, r := range recs {
		fmt.Printf("  #%-5d %s  Hb %6.2f g/dL  %s\n", r.ID, r.TestDate.Format(records.DateLayout), r.HemoglobinLevel, r.Result)
	}
}
