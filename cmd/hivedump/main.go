// Command hivedump prints a hive's key tree and values for inspection.
// It is a thin demonstration of the hive package, not a supported tool.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/joshuapare/nthive/hive"
)

func main() {
	path := flag.String("key", "", `subtree to dump, e.g. "ControlSet001\Services"`)
	clearVolatile := flag.Bool("clear-volatile", false, "zero every volatile-subkey count before dumping")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hivedump [-key PATH] [-clear-volatile] <hive-file>")
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fatal(err)
	}

	h, err := hive.Open(data)
	if err != nil {
		fatal(err)
	}

	if *clearVolatile {
		if err := h.ClearVolatileSubkeys(); err != nil {
			fatal(err)
		}
	}

	root, err := h.RootKeyNode()
	if err != nil {
		fatal(err)
	}

	start := root
	if *path != "" {
		start, _, err = root.Subpath(*path)
		if err != nil {
			fatal(err)
		}
	}

	if err := dumpNode(start, 0); err != nil {
		fatal(err)
	}
}

func dumpNode(k hive.KeyNode, depth int) error {
	name, err := k.Name()
	if err != nil {
		return err
	}
	fmt.Printf("%s%s\n", indent(depth), name.String())

	values, found, err := k.Values()
	if err != nil {
		return err
	}
	if found {
		for {
			v, ok, err := values.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := dumpValue(v, depth+1); err != nil {
				return err
			}
		}
	}

	subkeys, found, err := k.Subkeys()
	if err != nil {
		return err
	}
	if found {
		for {
			child, ok, err := subkeys.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := dumpNode(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func dumpValue(v hive.KeyValue, depth int) error {
	name, err := v.Name()
	if err != nil {
		return err
	}
	label := name.String()
	if label == "" {
		label = "(default)"
	}

	data, err := v.Data()
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	switch v.DataType() {
	case hive.RegSZ, hive.RegExpandSZ:
		s, err := v.StringData()
		if err != nil {
			return err
		}
		fmt.Printf("%s%s = %s\n", indent(depth), label, s.String())
	case hive.RegDWord, hive.RegDWordBigEndian:
		n, err := v.DWordData()
		if err != nil {
			return err
		}
		fmt.Printf("%s%s = %d\n", indent(depth), label, n)
	case hive.RegQWord:
		n, err := v.QWordData()
		if err != nil {
			return err
		}
		fmt.Printf("%s%s = %d\n", indent(depth), label, n)
	case hive.RegMultiSZ:
		parts, err := v.MultiStringData()
		if err != nil {
			return err
		}
		fmt.Printf("%s%s = [", indent(depth), label)
		for i, p := range parts {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Print(p.String())
		}
		fmt.Println("]")
	default:
		fmt.Printf("%s%s (%s) = %s\n", indent(depth), label, v.DataType(), hex.EncodeToString(data))
	}
	return nil
}

func indent(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "hivedump:", err)
	os.Exit(1)
}
