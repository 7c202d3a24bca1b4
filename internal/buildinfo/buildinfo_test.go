package buildinfo

import (
    "strings"
    "testing"
)

func TestInfoAndString(t *testing.T) {
    old := Version
    Version = "1.2.3"
    defer func() { Version = old }()
    if Info()["version"] != "1.2.3" { t.Fatalf("version not reported: %v", Info()) }
    if !strings.HasPrefix(String(), "chainsim 1.2.3") { t.Fatalf("String: %s", String()) }
}
