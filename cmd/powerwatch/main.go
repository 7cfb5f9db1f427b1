package main

import "github.com/pmr-b5/powerwatch/internal/cli"

func main() {
	cli.Execute()
}
