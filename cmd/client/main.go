package main

import "github.com/dkeye/Spaces/internal/cli"

func main() {
	cli.Execute()
}
