// Command biorad runs BBC-CV model comparison experiments over a CSV
// dataset and reports the bias-corrected scores.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
