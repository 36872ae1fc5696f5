package main

import (
	"github.com/niels/rawhttpd/internal/cmd"
)

func main() {
	cmd.Execute()
}
