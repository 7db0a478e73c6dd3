package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tjfontaine/cassette/cassette"
)

func main() {
	jsonBodies := flag.Bool("json", true, "accept structured json bodies")
	matching := flag.Bool("matching", true, "accept body matching rules")
	regex := flag.Bool("regex", true, "accept regex matching rules")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: vcrlint [-json=false] [-matching=false] [-regex=false] <cassette>...")
		fmt.Fprintln(os.Stderr, "Validates VCR cassette files (JSON or YAML) and reports schema errors.")
		os.Exit(1)
	}

	decoder := cassette.NewDecoder(cassette.Capabilities{
		JSON:     *jsonBodies,
		Matching: *matching,
		Regex:    *regex,
	})

	failed := false
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed = true
			continue
		}
		c, err := decoder.Decode(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed = true
			continue
		}
		fmt.Printf("%s: ok (%d interactions, recorded with %s)\n",
			name, len(c.HTTPInteractions), c.RecordedWith)
	}

	if failed {
		os.Exit(1)
	}
}
