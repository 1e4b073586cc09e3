package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)

	if err := newApp(log).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
