package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Brownie44l1/fracture-api/internal/client"
)

func main() {
	server := flag.String("server", "http://localhost:8000", "analysis server base URL")
	language := flag.String("lang", "en", "language tag sent with each upload")
	timeout := flag.Duration("timeout", 2*time.Minute, "per request timeout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: analyze [-server URL] [-lang en] <image|dicom>...")
		os.Exit(2)
	}

	c := client.New(*server, *timeout)

	status, err := c.Status()
	if err != nil {
		log.Fatalf("Server unavailable: %v", err)
	}
	if !status.ModelLoaded {
		log.Printf("warning: server has no model loaded, results are mock predictions")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := false
	for _, path := range flag.Args() {
		contents, err := os.ReadFile(path)
		if err != nil {
			log.Printf("%s: %v", path, err)
			failed = true
			continue
		}

		verdict, err := c.Analyze(path, contents, *language)
		if err != nil {
			log.Printf("%s: %v", path, err)
			failed = true
			continue
		}

		if err := enc.Encode(map[string]any{"file": path, "verdict": verdict}); err != nil {
			log.Fatalf("error writing output: %v", err)
		}
	}

	if failed {
		os.Exit(1)
	}
}
