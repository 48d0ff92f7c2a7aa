package main

import "github.com/itcctvonlinetif-sudo/BillTracker/internal/cli"

func main() {
	cli.Execute()
}
