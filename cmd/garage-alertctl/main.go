package main

import "github.com/oshokin/garage-alert/cmd/garage-alertctl/cmd"

func main() {
	cmd.Execute()
}
