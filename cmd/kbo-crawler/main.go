package main

import (
	"context"
	"fmt"
	"os"

	"github.com/JakeFAU/kbo-game-crawler/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "kbo-crawler: %v\n", err)
		os.Exit(1)
	}
}
