package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS

// LoadTemplates parses the embedded page templates. Each page gets its
// own template set layered over the base layout so page blocks can
// override the layout's.
func LoadTemplates() (*template.Template, error) {
	baseContent, err := fs.ReadFile(TemplatesFS, "templates/layouts/base.html")
	if err != nil {
		return nil, err
	}

	tmpl := template.New("")

	entries, err := fs.ReadDir(TemplatesFS, "templates/pages")
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pageContent, err := fs.ReadFile(TemplatesFS, "templates/pages/"+entry.Name())
		if err != nil {
			return nil, err
		}

		pageTmpl := tmpl.New(entry.Name())
		if _, err := pageTmpl.Parse(string(baseContent)); err != nil {
			return nil, err
		}
		if _, err := pageTmpl.Parse(string(pageContent)); err != nil {
			return nil, err
		}
	}

	return tmpl, nil
}

// GetStaticFS returns the embedded static asset tree rooted at static/.
func GetStaticFS() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
