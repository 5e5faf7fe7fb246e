package main

import (
	"github.com/fl64/ansible-demo/scm-inventory/internal/cmd"
)

func main() {
	cmd.Execute()
}
