package main

import "mcp-fleet/internal/cli"

func main() {
	cli.Execute()
}
