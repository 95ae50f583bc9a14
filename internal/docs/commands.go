// Package docs renders the bot's command reference as Markdown.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/keshon/server-warden/pkg/cmd"
)

// Section is one heading of the reference. Prefix is prepended to every
// command name, e.g. "/".
type Section struct {
	Title    string
	Prefix   string
	Commands []cmd.Command
}

var sectionsTmpl = template.Must(template.New("sections").Parse(
	`{{range $i, $s := .}}{{if $i}}
{{end}}### {{$s.Title}}

{{range $s.Commands}}- **{{$s.Prefix}}{{.Name}}** - {{.Description}}
{{end}}{{end}}`))

// WriteCommands writes every section as a Markdown list.
func WriteCommands(w io.Writer, sections ...Section) error {
	return sectionsTmpl.Execute(w, sections)
}

// UpdateReadme renders the template at tmplPath into outPath. The template
// receives the rendered sections as {{.CommandSections}}.
func UpdateReadme(tmplPath, outPath string, sections ...Section) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return fmt.Errorf("parse readme template: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteCommands(&buf, sections...); err != nil {
		return err
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, struct{ CommandSections string }{buf.String()}); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return os.WriteFile(outPath, out.Bytes(), 0o644)
}
