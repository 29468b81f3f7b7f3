// Genera CLI - loads class/generic manifests and inspects the
// resulting dispatch tables.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/jmallory/genera/manifest"
	"github.com/jmallory/genera/runtime"
	"github.com/jmallory/genera/snapshot"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (dispatch tracing)")
	dir := flag.String("d", ".", "Directory containing genera.toml")
	out := flag.String("o", "genera.snapshot", "Output path for the snapshot command")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: genera [options] <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  check      Load and validate the manifest\n")
		fmt.Fprintf(os.Stderr, "  info       Print classes, precedence chains and generics\n")
		fmt.Fprintf(os.Stderr, "  snapshot   Write a canonical CBOR snapshot of the registry\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  genera check              # Validate ./genera.toml\n")
		fmt.Fprintf(os.Stderr, "  genera -d ./defs info     # Inspect defs/genera.toml\n")
		fmt.Fprintf(os.Stderr, "  genera snapshot -o reg.cbor\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := m.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rt := runtime.New()
	if err := m.Apply(rt); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", describeError(err))
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "check":
		fmt.Printf("ok: %d classes, %d generics\n", rt.Classes.Len(), rt.Generics.Len())
	case "info":
		printInfo(rt)
	case "snapshot":
		if err := writeSnapshot(rt, *out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *out)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}
}

func printInfo(rt *runtime.Runtime) {
	fmt.Println("Classes:")
	for _, c := range rt.Classes.All() {
		hash := snapshot.HashClass(c)
		fmt.Printf("  %-20s %s  [%s]\n",
			c.Name,
			strings.Join(c.PrecedenceNames(), " < "),
			fmt.Sprintf("%x", hash[:4]))
	}
	fmt.Println("Generics:")
	for _, g := range rt.Generics.All() {
		fmt.Printf("  %s/%d", g.Name, g.Arity)
		if g.Default != nil {
			fmt.Print("  (has default)")
		}
		fmt.Println()
		for _, m := range rt.Methods.MethodsFor(g.Name) {
			fmt.Printf("    (%s)\n", strings.Join(m.Signature, ", "))
		}
	}
}

func writeSnapshot(rt *runtime.Runtime, path string) error {
	snap := snapshot.Export(rt, nil)
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// describeError names the failure category for the error kinds the
// runtime reports, so manifest mistakes read as what they are.
func describeError(err error) string {
	var (
		dup      *runtime.DuplicateClassError
		badPar   *runtime.UnknownParentError
		noClass  *runtime.UnknownClassError
		abstract *runtime.AbstractInstantiationError
	)
	switch {
	case errors.As(err, &dup):
		return fmt.Sprintf("duplicate class: %v", err)
	case errors.As(err, &badPar):
		return fmt.Sprintf("unknown parent: %v", err)
	case errors.As(err, &noClass):
		return fmt.Sprintf("unknown class: %v", err)
	case errors.As(err, &abstract):
		return fmt.Sprintf("abstract class: %v", err)
	default:
		return err.Error()
	}
}
