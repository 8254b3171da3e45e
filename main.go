package main

import "github.com/atikulmunna/logkit/internal/cmd"

func main() {
	cmd.Execute()
}
