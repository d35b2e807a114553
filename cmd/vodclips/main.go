package main

import "github.com/forPelevin/vodclips/internal/cli"

func main() {
	cli.Main()
}
