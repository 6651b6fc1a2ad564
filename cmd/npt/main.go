package main

import "github.com/kjannette/npt-backend/internal/cli"

func main() {
	cli.Execute()
}
