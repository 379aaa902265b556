package main

import "sjsage522/dealrefresher/cmd"

func main() {
	cmd.Execute()
}
