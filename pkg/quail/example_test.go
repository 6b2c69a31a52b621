package quail_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/quail/pkg/quail"
)

func ExampleClient() {
	ctx := context.Background()
	client := quail.NewClient("http://localhost:3000")

	if _, err := client.Login(ctx, "trader@example.com", "secret123"); err != nil {
		log.Fatal(err)
	}

	strategy, err := client.CreateStrategy(ctx, quail.CreateStrategyRequest{
		Name: "Buy and hold",
		Code: "class BuyAndHold(QCAlgorithm): ...",
	})
	if err != nil {
		log.Fatal(err)
	}

	backtest, err := client.CreateBacktest(ctx, quail.CreateBacktestRequest{StrategyID: strategy.ID, Name: "2020"})
	if err != nil {
		log.Fatal(err)
	}

	done, err := client.WaitForBacktest(ctx, backtest.ID, 2*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range done.Metrics {
		fmt.Printf("%s: %.2f%s\n", m.Name, m.Value, m.Unit)
	}
}
