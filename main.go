// Entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/utkarsh5026/balancesim/cmd"
)

func main() {
	cmd.Execute()
}
