package main

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fs2indexnode",
		Short: "Aggregate registered fs2 clients into a searchable virtual filesystem",
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.AddCommand(newServeCommand())
	root.AddCommand(newStatsCommand())
	return root
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	var out io.Writer = os.Stderr
	if f, ok := out.(*os.File); ok {
		out = colorable.NewColorable(f)
	}
	l.SetOutput(out)
	return l
}
