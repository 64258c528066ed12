// configgen emits and checks the TOML files keywired and keyctl read. With
// -validate it loads an existing file through the same code path the
// binaries use; otherwise it writes a fresh commented template.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/danmuck/keywire/internal/config"
)

var kindPaths = map[string]string{
	"server": "cmd/keywired/config.toml",
	"client": "cmd/keyctl/config.toml",
}

func main() {
	kind := flag.String("kind", "server", "config kind: server|client")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if _, ok := kindPaths[*kind]; !ok {
		log.Fatalf("unknown kind: %s", *kind)
	}

	if *validate {
		path := pathOrDefault(*input, *kind)
		if err := check(*kind, path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := pathOrDefault(*output, *kind)
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func pathOrDefault(path, kind string) string {
	if path != "" {
		return path
	}
	return kindPaths[kind]
}

func check(kind, path string) error {
	switch kind {
	case "server":
		_, err := config.LoadServerConfig(path)
		return err
	case "client":
		_, err := config.LoadClientConfig(path)
		return err
	default:
		return fmt.Errorf("unknown kind: %s", kind)
	}
}
