// internal/email/templates/welcome.go
package templates

import (
	_ "embed"
	"html/template"
	"strings"
	"time"
)

//go:embed welcome.html
var welcomeHTML string

var welcomeTmpl = template.Must(template.New("welcome").Parse(welcomeHTML))

type WelcomeData struct {
	Username string
	AppURL   string
	Year     int
}

func RenderWelcomeEmail(data WelcomeData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var buf strings.Builder
	err := welcomeTmpl.Execute(&buf, data)
	return buf.String(), err
}
