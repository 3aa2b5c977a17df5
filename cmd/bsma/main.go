package main

import (
	"github.com/framefrok/bsma/internal/cli"
)

func main() {
	cli.Execute()
}
