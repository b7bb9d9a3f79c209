// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/conduct/conduct/cmd/conduct"

func main() {
	cmd.Execute()
}
