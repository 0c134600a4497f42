package main

import (
	"fmt"
	"os"

	"github.com/mwantia/fieldsync/cmd/fieldsync/cli"
	"github.com/mwantia/fieldsync/cmd/fieldsync/cli/client"
	"github.com/mwantia/fieldsync/cmd/fieldsync/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	root.AddCommand(client.NewFormCommand())
	root.AddCommand(client.NewQueueCommand())
	root.AddCommand(client.NewDatabaseCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
