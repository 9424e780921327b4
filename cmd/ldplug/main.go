package main

import (
	"fmt"
	"os"

	"github.com/snowmerak/ldplugin/example/irscan"
	"github.com/snowmerak/ldplugin/lib/cli"
	"github.com/snowmerak/ldplugin/lib/dynload"
)

func main() {
	dynload.Register(irscan.Name, irscan.New())

	if err := cli.NewRootCommand(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
