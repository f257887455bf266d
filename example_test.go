package slabgo_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/slabgo"
	"github.com/hupe1980/slabgo/slab"
	"github.com/hupe1980/slabgo/wal"
)

// Example_insert demonstrates basic insert, lookup, update and erase.
func Example_insert() {
	ctx := context.Background()
	db, _ := slabgo.New[string]()
	defer db.Close()

	h, err := db.Insert(ctx, "document-1")
	if err != nil {
		log.Fatal(err)
	}

	value, _ := db.Get(h)
	fmt.Printf("handle %d holds %q\n", h, value)

	_ = db.Update(ctx, h, "document-1-revised")
	value, _ = db.Get(h)
	fmt.Printf("handle %d holds %q\n", h, value)

	_ = db.Erase(ctx, h)
	fmt.Println("live values:", db.Len())
	// Output:
	// handle 1 holds "document-1"
	// handle 1 holds "document-1-revised"
	// live values: 0
}

// Example_handleReuse demonstrates that erased slots are recycled and that
// surviving handles stay valid across growth.
func Example_handleReuse() {
	ctx := context.Background()
	db, _ := slabgo.New[string](slabgo.WithGrowthPolicy(slab.ConstantGrowth{Block: 4}))
	defer db.Close()

	h1, _ := db.Insert(ctx, "a")
	h2, _ := db.Insert(ctx, "b")
	h3, _ := db.Insert(ctx, "c")

	// Freeing h2 makes its slot the next one handed out.
	_ = db.Erase(ctx, h2)
	h4, _ := db.Insert(ctx, "d")

	fmt.Println("h2 reused:", h4 == h2)

	// h1 and h3 survive unchanged.
	v1, _ := db.Get(h1)
	v3, _ := db.Get(h3)
	fmt.Println(v1, v3)
	// Output:
	// h2 reused: true
	// a c
}

// Example_builder demonstrates creating a Slab with the fluent builder.
func Example_builder() {
	db, err := slabgo.NewBuilder[string]().
		GrowthPolicy(slab.ConstantGrowth{Block: 4096}). // Fixed block size
		InitialCapacity(10000).                         // Pre-allocate
		Build()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	fmt.Println("store created successfully")
	// Output: store created successfully
}

// Example_scan demonstrates the fluent scan API.
func Example_scan() {
	ctx := context.Background()
	db, _ := slabgo.New[int]()
	defer db.Close()

	for i := 1; i <= 10; i++ {
		_, _ = db.Insert(ctx, i*10)
	}

	results, err := db.Scan().
		Filter(func(h slabgo.Handle, v *int) bool { return *v > 50 }).
		Limit(3).
		Execute(ctx)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Println(r.Handle, r.Value)
	}
	// Output:
	// 6 60
	// 7 70
	// 8 80
}

// Example_wal demonstrates enabling the Write-Ahead Log for durability.
func Example_wal() {
	walPath := "./example_wal"
	defer os.RemoveAll(walPath) // Cleanup after example

	db, err := slabgo.New[string](
		slabgo.WithWAL(walPath, func(o *wal.Options) {
			o.DurabilityMode = wal.DurabilityGroupCommit
			o.GroupCommitInterval = 10 * time.Millisecond
			o.GroupCommitMaxOps = 100
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	fmt.Println("WAL enabled successfully")
	// Output: WAL enabled successfully
}

// Example_snapshot demonstrates a snapshot save and reload round trip.
func Example_snapshot() {
	ctx := context.Background()
	dir, _ := os.MkdirTemp("", "slabgo-example")
	defer os.RemoveAll(dir)
	filename := filepath.Join(dir, "store.slab")

	db, _ := slabgo.New[string]()
	_, _ = db.Insert(ctx, "alpha")
	_, _ = db.Insert(ctx, "beta")

	if err := db.SaveToFile(filename); err != nil {
		log.Fatal(err)
	}
	_ = db.Close()

	restored, err := slabgo.NewFromFile[string](filename)
	if err != nil {
		log.Fatal(err)
	}
	defer restored.Close()

	fmt.Println("restored values:", restored.Len())
	// Output: restored values: 2
}
