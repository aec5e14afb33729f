package main

import "github.com/ffrouin/tux-copilot/cmd/root"

func main() {
	root.Execute()
}
