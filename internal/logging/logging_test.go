package logging

import (
    "bytes"
    "encoding/json"
    "testing"

    "github.com/sirupsen/logrus"
)

func TestNewJSONAndLevel(t *testing.T) {
    var buf bytes.Buffer
    l := New(Config{Level: "warn", Format: "json", Out: &buf})
    if l.GetLevel() != logrus.WarnLevel { t.Fatalf("level: %v", l.GetLevel()) }
    l.Info("dropped")
    Component(l, "sim").Warn("kept")
    var rec map[string]any
    if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil { t.Fatalf("decode %q: %v", buf.String(), err) }
    if rec["msg"] != "kept" || rec["component"] != "sim" { t.Fatalf("unexpected record: %+v", rec) }
}

func TestParseLevelDefault(t *testing.T) {
    if parseLevel("") != logrus.InfoLevel || parseLevel("DEBUG") != logrus.DebugLevel {
        t.Fatalf("bad level parsing")
    }
}
