package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func bail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(2)
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: era1cmp <a.era1> <b.era1>\n")
	}
	pflag.Parse()

	args := pflag.Args()
	if len(args) != 2 {
		pflag.Usage()
		os.Exit(2)
	}

	a, err := os.Open(args[0])
	if err != nil {
		bail(err)
	}
	defer a.Close()
	b, err := os.Open(args[1])
	if err != nil {
		bail(err)
	}
	defer b.Close()

	diff, err := compare(a, b)
	if err != nil {
		bail(err)
	}
	if diff != nil {
		fmt.Println(diff)
		a.Close()
		b.Close()
		os.Exit(1)
	}
	fmt.Println("archives are identical")
}
