// Command irscan builds the irscan backend as a shared object:
//
//	go build -buildmode=plugin -o irscan.so ./example/plugins/irscan
//
// and can then be loaded with "ldplug run --backend ./irscan.so".
package main

import (
	"github.com/snowmerak/ldplugin/example/irscan"
	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/status"
)

var backend = irscan.New()

// Onload is the entry point looked up by the host.
func Onload(v capability.Vector) status.Status {
	return backend.Onload(v)
}

func main() {}
