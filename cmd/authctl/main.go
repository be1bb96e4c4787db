package main

import "github.com/mcoot/authservice/internal/cli"

func main() {
	cli.Execute()
}
