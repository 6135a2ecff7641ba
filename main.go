package main

import "github.com/maxvaer/grpcscan/cmd"

func main() {
	cmd.Execute()
}
