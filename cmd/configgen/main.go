package main

import (
	"flag"
	"log"

	"github.com/danmuck/tcpbmock/internal/config"
	"github.com/danmuck/tcpbmock/internal/protocol/session"
	"github.com/danmuck/tcpbmock/internal/trace"
)

func main() {
	kind := flag.String("kind", "fixture", "manifest kind: fixture|suite")
	output := flag.String("output", "", "output path for manifest template")
	validate := flag.Bool("validate", false, "validate an existing manifest and the traces it names")
	input := flag.String("input", "", "manifest path for validation (defaults to <kind>.toml)")
	force := flag.Bool("force", false, "overwrite existing manifest")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		var fixtures []config.FixtureConfig
		switch *kind {
		case "fixture":
			f, err := config.LoadFixture(path)
			if err != nil {
				log.Fatal(err)
			}
			fixtures = append(fixtures, f)
		case "suite":
			s, err := config.LoadSuite(path)
			if err != nil {
				log.Fatal(err)
			}
			fixtures = s.Fixtures
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		for _, f := range fixtures {
			if err := validateTraces(f); err != nil {
				log.Fatalf("fixture %q: %v", f.Name, err)
			}
		}
		log.Printf("Validated %s manifest at %s (%d fixtures)", *kind, path, len(fixtures))
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s manifest template to %s", *kind, target)
}

func defaultPath(kind string) string {
	switch kind {
	case "fixture", "suite":
		return kind + ".toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
	}
	return ""
}

func validateTraces(f config.FixtureConfig) error {
	expected, err := trace.LoadFile(f.Expected)
	if err != nil {
		return err
	}
	responses, err := trace.LoadFile(f.Response)
	if err != nil {
		return err
	}
	return session.Validate(expected, responses)
}
