// fibsim replays binary packet traces against a static forwarding table and
// prints the forwarding decision for every packet.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
