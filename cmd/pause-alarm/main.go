package main

import "github.com/oshokin/pause-alarm/cmd/pause-alarm/cmd"

func main() {
	cmd.Execute()
}
