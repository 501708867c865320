package main

import "famcal/internal/cli"

func main() {
	cli.Execute()
}
