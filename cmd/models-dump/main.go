// models-dump prints the semantic model extracted from one C# file: the
// symbol table, discovered peripherals and their register enums. Useful when
// a register resolves unexpectedly and the question is whether the syntax
// layer or the resolver is at fault.
package main

import (
	"flag"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/discovery"
	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

func main() {
	tree := flag.Bool("tree", false, "dump the raw syntax tree instead of the model")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: models-dump [--tree] <file.cs>")
		os.Exit(1)
	}

	model, err := syntax.New().ParseFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *tree {
		dumpNode(model.Root(), model.Source, 0)
		return
	}

	fmt.Printf("=== Symbols ===\n")
	for _, sym := range model.Symbols() {
		container := ""
		if sym.Container != "" {
			container = " in " + sym.Container
		}
		fmt.Printf("  %-12s %s%s (line %d)\n", sym.Kind, sym.Name, container, int(sym.Decl.StartPoint().Row)+1)
	}

	fmt.Printf("\n=== Peripherals ===\n")
	for _, p := range discovery.FindPeripherals(model) {
		fmt.Printf("  %s (width %d)\n", p.Class.Name, p.Width)
		for _, g := range p.Groups {
			fmt.Printf("    group %s:\n", g.Name)
			for _, ref := range g.Registers {
				fmt.Printf("      %s = 0x%X\n", ref.Name, ref.Address)
			}
		}
	}
}

func dumpNode(n *sitter.Node, source []byte, depth int) {
	if n == nil {
		return
	}
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	text := ""
	if n.ChildCount() == 0 {
		text = fmt.Sprintf(" %q", n.Content(source))
	}
	fmt.Printf("%s [%d:%d]%s\n", n.Type(), int(n.StartPoint().Row)+1, int(n.StartPoint().Column)+1, text)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		dumpNode(n.NamedChild(i), source, depth+1)
	}
}
