// Command oilctl drives the OIL engine pipeline from stdin: a thin entry
// point over the cmd/oilctl package, which exposes Execute().
package main

import "github.com/nextlevelbuilder/oilengine/cmd/oilctl"

func main() {
	oilctl.Execute()
}
