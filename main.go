package main

import "github.com/frahmantamala/room-rental/cmd"

func main() {
	cmd.Execute()
}
