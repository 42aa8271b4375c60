package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

// 對記憶體儲存層上的引擎灌併發轉帳，驗證吞吐與守恆
func main() {
	var (
		accounts    = flag.Int("accounts", 100, "number of accounts")
		totalCount  = flag.Int("total", 100000, "total transfers")
		concurrency = flag.Int("concurrency", 200, "concurrent workers")
	)
	flag.Parse()

	ctx := context.Background()
	store := memory.NewStore()
	engine := usecase.NewEngine(store, nil, nil)

	seed := decimal.RequireFromString("10000.00")
	owners := make([]uuid.UUID, *accounts)
	for i := range owners {
		owners[i] = uuid.New()
		err := store.CreateAccount(ctx, newAccount(owners[i], i))
		if err != nil {
			log.Fatalf("create account: %v", err)
		}
		if _, err := engine.Credit(ctx, owners[i], seed, "seed", ""); err != nil {
			log.Fatalf("seed credit: %v", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(*totalCount)
	sem := make(chan struct{}, *concurrency)

	var failed atomic.Int64
	amount := decimal.RequireFromString("1.00")

	startTime := time.Now()
	for i := 0; i < *totalCount; i++ {
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			from := owners[rand.Intn(len(owners))]
			to := owners[rand.Intn(len(owners))]
			if from == to {
				failed.Add(1)
				return
			}

			_, err := engine.Transfer(ctx, usecase.TransferInput{
				SenderOwnerID: from,
				Recipient:     usecase.RecipientSelector{OwnerID: to},
				Amount:        amount,
			})
			if err != nil {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d transfers in %v (%d failed)\n", *totalCount, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*totalCount)/elapsed.Seconds())

	// 守恆檢查：總餘額必須等於總播種金額
	total := decimal.Zero
	for _, owner := range owners {
		balance, _, err := engine.GetBalance(ctx, owner)
		if err != nil {
			log.Fatalf("get balance: %v", err)
		}
		total = total.Add(balance)
	}
	expected := seed.Mul(decimal.NewFromInt(int64(*accounts)))
	fmt.Printf("Total balance: %s (expected %s)\n", total, expected)
	if !total.Equal(expected) {
		log.Fatal("conservation violated")
	}
}

func newAccount(ownerID uuid.UUID, i int) *domain.Account {
	return &domain.Account{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Email:    fmt.Sprintf("bench-%d@example.com", i),
		Currency: "USD",
		Balance:  decimal.Zero,
	}
}
