// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/heimdal-dev/pkgdb/cmd/pkgdb"

func main() {
	cmd.Execute()
}
