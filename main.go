/*
Copyright © 2025 tieubaoca
*/
package main

import (
	"github.com/joho/godotenv"
	"github.com/tieubaoca/citebot/cmd"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	cmd.Execute()
}
