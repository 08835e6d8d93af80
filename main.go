package main

import (
	"os"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
