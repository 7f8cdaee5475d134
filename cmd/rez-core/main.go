package main

import "rez-core/internal/cli"

func main() {
	cli.Execute()
}
