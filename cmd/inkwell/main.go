package main

import "github.com/inkwell-ai/inkwell/internal/cli"

func main() {
	cli.Execute()
}
