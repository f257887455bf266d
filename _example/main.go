package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/slabgo"
)

type Order struct {
	ID    string
	Total float64
}

func main() {
	ctx := context.Background()
	size := 500000

	dir, err := os.MkdirTemp("", "slabgo-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := slabgo.NewBuilder[Order]().
		WAL(filepath.Join(dir, "wal")).
		SnapshotPath(filepath.Join(dir, "orders.snap")).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Insert ---")
	fmt.Println("Size:", size)

	start := time.Now()

	handles := make([]slabgo.Handle, 0, size)
	for i := range size {
		h, err := db.Insert(ctx, Order{ID: fmt.Sprintf("A-%06d", i), Total: float64(i % 1000)})
		if err != nil {
			log.Fatal(err)
		}
		handles = append(handles, h)
	}

	fmt.Printf("Seconds: %.2f\n\n", time.Since(start).Seconds())

	fmt.Println("--- Erase / reuse ---")

	// Erase every tenth order; the freed slots are handed out again on the
	// next inserts, so capacity stays flat.
	for i := 0; i < size; i += 10 {
		if err := db.Erase(ctx, handles[i]); err != nil {
			log.Fatal(err)
		}
	}
	for i := 0; i < size/10; i++ {
		if _, err := db.Insert(ctx, Order{ID: fmt.Sprintf("B-%06d", i), Total: 42}); err != nil {
			log.Fatal(err)
		}
	}

	stats := db.Stats()
	fmt.Printf("Live: %d, Capacity: %d, Free: %d\n\n", stats.Size, stats.Capacity, stats.Free)

	fmt.Println("--- Scan ---")

	start = time.Now()

	results, err := db.Scan().
		Filter(func(h slabgo.Handle, o *Order) bool { return o.Total > 990 }).
		Limit(5).
		Execute(ctx)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Printf("Handle: %d, ID: %s, Total: %.0f\n", r.Handle, r.Value.ID, r.Value.Total)
	}

	fmt.Printf("Seconds: %.4f\n\n", time.Since(start).Seconds())

	fmt.Println("--- Checkpoint / reopen ---")

	start = time.Now()

	if err := db.Checkpoint(); err != nil {
		log.Fatal(err)
	}
	if err := db.Close(); err != nil {
		log.Fatal(err)
	}

	db2, err := slabgo.NewFromFile[Order](filepath.Join(dir, "orders.snap"),
		slabgo.WithWAL(filepath.Join(dir, "wal")))
	if err != nil {
		log.Fatal(err)
	}
	defer db2.Close()

	if err := db2.RecoverFromWAL(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seconds: %.2f\n", time.Since(start).Seconds())
	fmt.Println("Recovered:", db2.Len())

	// Handles survive the round trip unchanged.
	o, err := db2.Get(handles[1])
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Handle %d -> %s\n", handles[1], o.ID)
}
