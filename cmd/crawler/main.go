package main

import "matrusp-crawler/cmd/crawler/commands"

func main() {
	commands.Execute()
}
