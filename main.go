package main

import "maker-fill-validator/internal/cli"

func main() {
	cli.Execute()
}
