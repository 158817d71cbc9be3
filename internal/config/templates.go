package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "fixture":
		return fixtureTemplate, nil
	case "suite":
		return suiteTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const fixtureTemplate = `name = "energy_grad_force"
port = 56789
dir = "."
expected = "client_sent.bin"
response = "client_recv.bin"
`

const suiteTemplate = `name = "tcpb-tests"

[[fixtures]]
name = "available"
port = 56789
dir = "available"

[[fixtures]]
name = "energy_grad_force"
port = 56789
dir = "energy_grad_force"
`
