package main

import "hexe/internal/cmd"

func main() {
	cmd.Execute()
}
