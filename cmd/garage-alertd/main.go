package main

import "github.com/oshokin/garage-alert/cmd/garage-alertd/cmd"

func main() {
	cmd.Execute()
}
