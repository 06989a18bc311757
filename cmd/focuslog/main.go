package main

import "github.com/bryanchriswhite/FocusLog/cmd/focuslog/commands"

func main() {
	commands.Execute()
}
