// Package main: reliefctl, the operator command line for the campaign ledger.
package main

import "github.com/tarancss/relief/cmd/reliefctl/cmd"

func main() {
	cmd.Execute()
}
