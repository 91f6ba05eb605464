// This program provides a simple wallet for the node.
package main

import "github.com/ardanlabs/statecore/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
