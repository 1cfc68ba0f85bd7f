package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"teenyjvm/classfile"
	"teenyjvm/heap"
	"teenyjvm/vm"
)

const (
	entryMethodName       = "main"
	entryMethodDescriptor = "([Ljava/lang/String;)V"
)

func main() {
	app := &cli.App{
		Name:      "teenyjvm",
		Usage:     "run a single-class teeny JVM bytecode program",
		ArgsUsage: "<class file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "log host-level diagnostics to stderr",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "log a structured trace of every executed instruction to stderr",
			},
		},
		Action:   run,
		HideHelp: true,
	}
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "USAGE: %s <class file>\n", os.Args[0])
		os.Exit(1)
	}

	logger := newLogger(c.Bool("debug"))
	defer logger.Sync() //nolint:errcheck

	traceLogger := zap.NewNop()
	if c.Bool("trace") {
		traceLogger = newLogger(true)
		defer traceLogger.Sync() //nolint:errcheck
	}

	path := c.Args().Get(0)
	logger.Debug("opening class file", zap.String("path", path))
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	class, err := classfile.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	logger.Debug("parsed class file", zap.Int("methods", len(class.Methods)))

	method, err := class.FindMethod(entryMethodName, entryMethodDescriptor)
	if err != nil {
		return errors.Wrapf(err, "locating entry point in %s", path)
	}

	locals := make([]int32, method.MaxLocals)
	h := heap.New()

	logger.Debug("entering method",
		zap.String("name", method.Name),
		zap.String("descriptor", method.Descriptor),
		zap.Uint16("maxStack", method.MaxStack),
		zap.Uint16("maxLocals", method.MaxLocals),
	)

	if _, err := vm.Execute(method, locals, class, h, traceLogger); err != nil {
		return errors.Wrap(err, "executing")
	}

	return nil
}

func newLogger(debug bool) *zap.Logger {
	if !debug {
		return zap.NewNop()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
