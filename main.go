package main

import (
	"MusicPro/cmd"
)

func main() {
	cmd.Execute()
}
