// Command geefs creates GeeFS images, copies host files into them, browses
// them from an interactive shell and moves them around as compressed snapshots.
package main

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/maxxsoft/geefs/filesystem/geefs"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	a := newApp(cfg, osfs.New("/"), filepath.Abs)
	if err := a.newCLI(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		if geefs.IsCorruption(err) {
			logrus.Fatalf("image is corrupted, stop using it: %v", err)
		}
		logrus.Fatal(err)
	}
}
