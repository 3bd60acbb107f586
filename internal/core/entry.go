package core

import (
	"bytes"
	"embed"
	"encoding/json"
	"io/fs"
	"path/filepath"
	"text/template"
)

// EntryTemplateVersion changes whenever the entry contract changes.
const EntryTemplateVersion = "1"

//go:embed entries/*.tmpl
var entryTemplates embed.FS

//go:embed imports
var importsFS embed.FS

var (
	serverEntryTemplate = template.Must(template.ParseFS(entryTemplates, "entries/server-entry.js.tmpl"))
	clientEntryTemplate = template.Must(template.ParseFS(entryTemplates, "entries/client-entry.js.tmpl"))
)

type entryData struct {
	Version      string
	View         string
	StateKey     string
	RootStateKey string
}

// Entries holds the synthesized entry sources for one view.
type Entries struct {
	Paths  EntryPaths
	Server []byte
	Client []byte
}

// SynthesizeEntries renders both entry sources for the view file.
func SynthesizeEntries(viewFile string, paths EntryPaths) (Entries, error) {
	view, err := json.Marshal(filepath.ToSlash(viewFile))
	if err != nil {
		return Entries{}, err
	}

	data := entryData{
		Version:      EntryTemplateVersion,
		View:         string(view),
		StateKey:     StateWindowKey,
		RootStateKey: RootStateWindowKey,
	}

	var server, client bytes.Buffer
	if err := serverEntryTemplate.Execute(&server, data); err != nil {
		return Entries{}, err
	}
	if err := clientEntryTemplate.Execute(&client, data); err != nil {
		return Entries{}, err
	}

	return Entries{Paths: paths, Server: server.Bytes(), Client: client.Bytes()}, nil
}

// Imports returns the built-in modules every entry imports: the companion
// component and the style/state runtime.
func Imports() fs.FS {
	sub, err := fs.Sub(importsFS, "imports")
	if err != nil {
		panic(err)
	}
	return sub
}
