// Command nodematc compiles a serialized node material graph into GLSL vertex
// and fragment shader sources.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/nodemat"
)

func main() {
	log.SetFlags(0)
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("nodematc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		output   = fs.String("o", "", "output path prefix for .vert and .frag files (default: input path without extension)")
		defines  = fs.String("defines", "", "comma separated defines to enable in the written sources")
		version  = fs.String("version", "", "GLSL version directive (default: \"330 core\")")
		exclude  = fs.String("exclude", "", "comma separated identifiers generated names must avoid")
		comments = fs.Bool("comments", false, "annotate generated code with block names")
		toStdout = fs.Bool("stdout", false, "print sources to standard output instead of writing files")
		list     = fs.Bool("list", false, "list the known block classes and exit")
		verbose  = fs.Bool("v", false, "log compilation steps to standard error")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: nodematc [flags] graph.json")
		fs.PrintDefaults()
	}
	err := fs.Parse(args)
	if err != nil {
		return err
	}
	reg := nodemat.DefaultRegistry()
	if *list {
		for _, class := range reg.Classes() {
			fmt.Fprintln(stdout, class)
		}
		return nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one graph file")
	}

	cfg := nodemat.BuildConfig{
		Version:       *version,
		ExcludedNames: splitList(*exclude),
	}
	if *comments {
		cfg.Flags |= nodemat.FlagEmitComments
	}
	if *verbose {
		cfg.Flags |= nodemat.FlagVerbose
		nodemat.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		defer nodemat.SetLogger(nil)
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	g, err := nodemat.Unmarshal(data, reg)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	prog, buildErr := g.Build(cfg)
	for _, d := range prog.Diagnostics {
		fmt.Fprintln(stderr, d.Error())
	}
	if buildErr != nil {
		return fmt.Errorf("compiling %s: %d errors", path, len(prog.Diagnostics.Errors()))
	}

	enabled := make(nodemat.Defines)
	for _, name := range splitList(*defines) {
		enabled[name] = true
	}
	vertex, fragment := prog.Sources(enabled)
	if *toStdout {
		fmt.Fprintf(stdout, "// %s.vert\n%s\n// %s.frag\n%s", g.Name, vertex, g.Name, fragment)
		return nil
	}
	prefix := *output
	if prefix == "" {
		prefix = strings.TrimSuffix(path, filepath.Ext(path))
	}
	err = os.WriteFile(prefix+".vert", []byte(vertex), 0o644)
	if err != nil {
		return err
	}
	err = os.WriteFile(prefix+".frag", []byte(fragment), 0o644)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s.vert and %s.frag\n", prefix, prefix)
	if len(prog.DefineNames) > 0 {
		fmt.Fprintf(stdout, "available defines: %s\n", strings.Join(prog.DefineNames, ","))
	}
	return nil
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}
