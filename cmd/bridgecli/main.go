package main

import "github.com/robotalks/rtbridge/pkg/cli/sh"

func main() {
	sh.Main()
}
