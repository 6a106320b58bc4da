package main

import "github.com/pantheon-bots/pantheon/cmd"

func main() {
	cmd.Execute()
}
