/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/fieldapp-client/cmd"

func main() {
	cmd.Execute()
}
