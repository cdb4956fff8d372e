package main

import "github.com/taskapp/accounts/cmd"

func main() {
	cmd.Execute()
}
