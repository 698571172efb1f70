package main

import "github.com/boardforge/board-imager/cmd/assemble-sd/cmd"

func main() {
	cmd.Execute()
}
