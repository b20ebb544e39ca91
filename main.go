package main

import (
	"log"

	"github.com/cwbudde/homfit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
