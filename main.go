package main

import (
	"github.com/moep/moepserver/cmd"
)

func main() {
	cmd.Execute()
}
