package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sgostarter/i/l"
)

const usage = `usage: bivlite <command> [flags]

Commands:
  info <model file>  print the geometry and volumes of one fitted model
  volumes            print the volume table of a cycle
  strain             print the GLS and GCS curves of a cycle
  clean              remove volume outliers and spikes, write cleaned models
  resample           resample a cycle to evenly spaced frames
  process            run the complete pipeline and write every result
  stl                export the surfaces of one frame as STL
  plot               plot volume, strain and node projections
  config             write the default configuration file

Run "bivlite <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	commands := map[string]func(args []string, logger l.Wrapper) error{
		"info":     runInfo,
		"volumes":  runVolumes,
		"strain":   runStrain,
		"clean":    runClean,
		"resample": runResample,
		"process":  runProcess,
		"stl":      runSTL,
		"plot":     runPlot,
		"config":   runConfig,
	}

	name := os.Args[1]
	run, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(1)
	}

	logger := l.NewConsoleLoggerWrapper()

	startTime := time.Now()
	if err := run(os.Args[2:], logger); err != nil {
		log.Fatalf("%s failed: %v", name, err)
	}
	logger.WithFields(l.StringField("command", name)).Debugf("completed in %.2f seconds", time.Since(startTime).Seconds())
}
