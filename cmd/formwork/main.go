package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/formworklabs/formwork/partial"
)

var (
	typeName    = flag.String("type", "person", "registered demo type to build")
	scriptFile  = flag.String("script", "", "operation script to run (one op per line)")
	interactive = flag.Bool("i", false, "interactive mode")
	verbose     = flag.Bool("v", false, "verbose logging")
	listTypes   = flag.Bool("list", false, "list registered demo types and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Builds a value of a registered demo type from a script of\n")
		fmt.Fprintf(os.Stderr, "incremental operations, or interactively with -i.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -type point -script build-point.fw\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -type person -i\n", os.Args[0])
	}
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		partial.SetLogger(logger)
	}

	if *listTypes {
		for _, name := range registryNames() {
			fmt.Println(name)
		}
		return
	}

	s, ok := registry[*typeName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown type %q (try -list)\n", *typeName)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*typeName, s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *scriptFile == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(*scriptFile, *typeName); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(scriptPath, typeName string) error {
	f, err := os.Open(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	sess, err := newSession(registry[typeName])
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	defer sess.close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		status, err := sess.exec(line)
		if err != nil {
			return fmt.Errorf("line %d (%s): %w", lineNo, line, err)
		}
		if status != "" {
			fmt.Println(status)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return nil
}
