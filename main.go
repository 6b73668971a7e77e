package main

import "github.com/ketran/localchat/cmd"

func main() {
	cmd.Execute()
}
