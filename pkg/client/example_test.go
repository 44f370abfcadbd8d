package client_test

import (
	"context"
	"fmt"

	"github.com/daniacca/chromasim/pkg/client"
)

func ExampleConfigBuilder() {
	cfg := client.NewConfig("zebrafish-trunk").
		Proportion(client.TypeA, 1).
		Proportion(client.TypeB, 1).
		Proportion(client.TypeC, 2).
		CellType(client.NewCellType(client.TypeC).Division(0.01)).
		Spread(0.2).
		Build()

	fmt.Printf("Config: %s\n", cfg.Name)
	fmt.Printf("Types: %d\n", len(cfg.TypeProportions))
	fmt.Printf("Melanophore division: %.2f\n", cfg.CellTypes[client.TypeC].DivisionProbability)
	// Output:
	// Config: zebrafish-trunk
	// Types: 3
	// Melanophore division: 0.01
}

func ExampleClient_CreateRun() {
	ctx := context.Background()
	run := client.NewRun("stripes-1").
		Steps(500).
		Cells(200).
		Seed(42).
		Config(client.NewConfig("stripes").
			Proportion(client.TypeA, 1).
			Proportion(client.TypeC, 1))

	// This would create the run on a server
	// Uncomment to actually send:
	// c := client.New("http://localhost:8080")
	// info, err := c.CreateRun(ctx, run)
	// if err != nil {
	// 	log.Fatal(err)
	// }
	// c.Start(ctx, info.ID, 0)

	_ = ctx
	_ = run
}
