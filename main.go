package main

import "pixpack/commands"

func main() {
	commands.Execute()
}
