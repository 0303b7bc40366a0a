package main

import "msghub/cmd/client/command"

func main() {
	command.Execute()
}
