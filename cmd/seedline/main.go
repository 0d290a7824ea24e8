// Command seedline runs the reconstruction chain on synthetic events,
// validates the accelerated variant against the reference, and manages the
// run database.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
