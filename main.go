package main

import (
	"treescope/cmd"
)

func main() {
	cmd.Execute()
}
