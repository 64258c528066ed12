package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
		return clientTemplate, nil
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

const serverTemplate = `id = "keywired"
listen_addr = ":7600"
admin_addr = ":7601"
auth_token = "temp-auth-key"
cors_origins = ["http://localhost:3000"]
max_in_flight = 64
compress_threshold = 512

[session]
read_timeout_ms = 15000
write_timeout_ms = 15000
security_mode = "development"

[session.tls]
enabled = false
cert_file = ""
key_file = ""

[[seeds]]
key = "0x1"
value = "hello"

[[seeds]]
key = "42"
value = "meaning"
`

const clientTemplate = `id = "keyctl"
server_addr = "localhost:7600"
admin_addr = "http://localhost:7601"
auth_token = "temp-auth-key"
record_kind = "key.lookup"
max_attempts = 3

[session]
connect_timeout_ms = 5000
read_timeout_ms = 15000
write_timeout_ms = 15000
security_mode = "development"

[session.backoff]
initial_delay_ms = 250
max_delay_ms = 5000
multiplier = 2.0
jitter = true

[session.tls]
enabled = false
ca_file = ""
server_name = ""
`
