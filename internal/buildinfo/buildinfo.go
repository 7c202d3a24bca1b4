package buildinfo

import (
    "fmt"
    "runtime"
    "runtime/debug"
)

// Set with -ldflags "-X chainsim/internal/buildinfo.Version=..."
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    commit := Commit
    if commit == "" { commit = vcsRevision() }
    return map[string]string{
        "version": Version,
        "commit":  commit,
        "builtAt": BuiltAt,
        "go":      runtime.Version(),
    }
}

// String is the one-line form printed by -version.
func String() string {
    i := Info()
    s := fmt.Sprintf("chainsim %s (%s)", i["version"], i["go"])
    if i["commit"] != "" { s += " commit " + i["commit"] }
    return s
}

func vcsRevision() string {
    bi, ok := debug.ReadBuildInfo()
    if !ok { return "" }
    for _, kv := range bi.Settings {
        if kv.Key == "vcs.revision" { return kv.Value }
    }
    return ""
}
