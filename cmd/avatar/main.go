package main

import "github.com/vietddude/avatar/internal/cli"

func main() {
	cli.Execute()
}
