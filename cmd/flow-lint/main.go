// Command flow-lint is a standalone maintenance CLI that validates an IVR
// flow JSON file without standing up the engine, grounded on the teacher's
// cmd/dbcheck subcommand shape (bare os.Args dispatch, plain-text report).
// Exit status is non-zero when validation fails, so it drops straight into
// CI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/voxswitch/ivr-engine/internal/flowvalidate"
	"github.com/voxswitch/ivr-engine/internal/model"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: flow-lint <ivrconfig.json>")
		os.Exit(2)
	}

	path := os.Args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flow-lint: %v\n", err)
		os.Exit(1)
	}

	var doc model.IVRFlowDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "flow-lint: %s: invalid json: %v\n", path, err)
		os.Exit(1)
	}

	if err := flowvalidate.IVRFlow(&doc); err != nil {
		fmt.Fprintf(os.Stderr, "flow-lint: %s: %v\n", path, err)
		os.Exit(1)
	}

	total := 0
	for _, cfg := range doc.IVRConfiguration {
		total += len(cfg.IVRProcessFlow)
	}
	fmt.Printf("%s: ok (%d configuration(s), %d node(s))\n", path, len(doc.IVRConfiguration), total)
}
