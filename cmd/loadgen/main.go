package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"tickex/internal/client"
)

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:8080", "exchange server base URL")
	totalOrders := flag.Int("orders", 10000, "number of orders to submit")
	instrument := flag.String("instrument", "ABC", "instrument to trade")
	basePrice := flag.Int64("base-price", 10000, "mid price used for randomization")
	priceLevels := flag.Int64("price-levels", 50, "unique price levels around the mid")
	maxQty := flag.Int64("max-qty", 20, "maximum order quantity")
	marketRatio := flag.Int("market-ratio", 10, "1 in N orders will be market instead of limit")
	cancelEvery := flag.Int("cancel-every", 25, "cancel a random earlier order every N submissions (0 disables)")
	tickEvery := flag.Int("tick-every", 100, "advance the clock every N submissions (0 disables)")
	seed := flag.Int64("seed", 1, "seed for the deterministic order stream")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	c := client.New(*baseURL)
	ctx := context.Background()

	info, err := c.GetInfo(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server unreachable: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("connected: version=%s instruments=%v tick=%d\n", info.Version, info.Instruments, info.Tick)

	var submitted, rejected, fills, ticks int
	var orderIDs []uint64

	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		req := nextRandomOrder(rng, *instrument, *basePrice, *priceLevels, *maxQty, *marketRatio)
		ack, err := c.SubmitOrder(ctx, req)
		if err != nil {
			rejected++
			continue
		}
		submitted++
		fills += len(ack.Trades)
		orderIDs = append(orderIDs, ack.OrderID)

		if *cancelEvery > 0 && i > 0 && i%*cancelEvery == 0 {
			target := orderIDs[rng.Intn(len(orderIDs))]
			_, _ = c.CancelOrder(ctx, target)
		}
		if *tickEvery > 0 && i > 0 && i%*tickEvery == 0 {
			res, err := c.AdvanceTick(ctx)
			if err == nil {
				ticks++
				fills += len(res.Trades)
			}
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("submitted=%d rejected=%d trades=%d ticks=%d in %s (%.0f orders/sec)\n",
		submitted, rejected, fills, ticks, elapsed,
		float64(submitted)/elapsed.Seconds())

	view, err := c.GetBook(ctx, *instrument, 5)
	if err == nil {
		fmt.Printf("final book %s: %d bid levels, %d ask levels, tick=%d\n",
			view.Instrument, len(view.Bids), len(view.Asks), view.Tick)
	}
}

func nextRandomOrder(rng *rand.Rand, instrument string, basePrice, priceLevels, maxQty int64, marketRatio int) client.OrderRequest {
	req := client.OrderRequest{
		Instrument: instrument,
		Quantity:   1 + rng.Int63n(maxQty),
	}
	if rng.Intn(2) == 0 {
		req.Side = "BUY"
	} else {
		req.Side = "SELL"
	}
	if marketRatio > 0 && rng.Intn(marketRatio) == 0 {
		req.Kind = "MARKET"
	} else {
		req.Kind = "LIMIT"
		req.Price = basePrice + rng.Int63n(2*priceLevels+1) - priceLevels
	}
	return req
}
