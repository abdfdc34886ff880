package main

import (
	"github.com/joho/godotenv"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/cli"
)

func main() {
	// optional; CACHECTL_SERVER may come from .env
	_ = godotenv.Load()
	cli.Execute()
}
