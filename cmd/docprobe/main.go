// Command docprobe runs the CRUD checklist against a document store.
package main

import "github.com/nimburion/docprobe/pkg/cli"

func main() {
	cli.Execute()
}
