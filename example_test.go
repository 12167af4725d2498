package arenakit_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/arenakit"
	"github.com/hupe1980/arenakit/arena"
)

// Example_freeList allocates and frees variable-sized blocks.
func Example_freeList() {
	p := arenakit.New()
	defer p.Close()

	fl, err := p.NewFreeList(1024, arena.PolicyBestFit)
	if err != nil {
		log.Fatal(err)
	}

	a, _ := fl.Allocate(100, 8)
	b, _ := fl.Allocate(200, 8)
	c, _ := fl.Allocate(50, 8)
	fl.Free(b)

	d, _ := fl.Allocate(150, 8)
	fmt.Println("reused hole:", d == b)

	fl.Free(a)
	fl.Free(c)
	fl.Free(d)
	fmt.Println("free blocks:", fl.Stats().FreeBlocks)
	// Output:
	// reused hole: true
	// free blocks: 1
}

// Example_deferredReclamation shows a released slot range staying unavailable
// until its epoch completes.
func Example_deferredReclamation() {
	ctx := context.Background()
	p := arenakit.New()
	defer p.Close()

	heap, err := p.NewSlotHeap(16)
	if err != nil {
		log.Fatal(err)
	}

	h, _ := heap.Allocate(4)
	h.Release()
	fmt.Println("free after release:", heap.Free())

	p.CompleteEpoch(ctx)
	fmt.Println("free after epoch:", heap.Free())
	// Output:
	// free after release: 12
	// free after epoch: 16
}

// Example_outOfCapacity distinguishes exhaustion from other errors.
func Example_outOfCapacity() {
	p := arenakit.New(arenakit.WithMemoryLimit(4096))
	defer p.Close()

	l, _ := p.NewLinear(64)
	_, err := l.Allocate(128, 0)
	fmt.Println(arenakit.IsOutOfCapacity(err))

	_, err = p.NewLinear(8192)
	fmt.Println(arenakit.IsOutOfCapacity(err))
	// Output:
	// true
	// true
}
