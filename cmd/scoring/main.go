package main

import (
	"context"
	"os"

	"github.com/noah-isme/sma-adp-scoring/internal/cli"
)

// @title SMA ADP Scoring API
// @version 1.0.0
// @description Final score calculation, batch processing and extra-score sync
// @BasePath /api/v1
// @schemes http

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
