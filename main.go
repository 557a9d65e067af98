// histnode keeps a versioned history of content-addressed records and
// replicates it between peers.
package main

import (
	"fmt"
	"os"

	"github.com/bisq-network/bisq-sub006/cmd"
	"github.com/bisq-network/bisq-sub006/node"
)

var (
	version string
	commit  string
)

func main() { // run the app
	cmd.Version = version
	cmd.Commit = commit
	if err := node.GetCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
