package main

import "github.com/boardforge/board-imager/cmd/assemble-emmc/cmd"

func main() {
	cmd.Execute()
}
