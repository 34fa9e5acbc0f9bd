package main

import "github.com/ngeltman/music-pitch-app/cmd"

func main() {
	cmd.Execute()
}
