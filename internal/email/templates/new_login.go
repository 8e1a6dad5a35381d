// internal/email/templates/new_login.go
package templates

import (
	_ "embed"
	"html/template"
	"strings"
	"time"
)

//go:embed new_login.html
var newLoginHTML string

var newLoginTmpl = template.Must(template.New("new_login").Parse(newLoginHTML))

// NewLoginData holds the data for the new-login security email.
type NewLoginData struct {
	Username  string
	Timestamp string // human-readable or RFC3339
	IPAddress string
	UserAgent string
	Year      int
}

// RenderNewLoginEmail renders the new-login security email HTML.
func RenderNewLoginEmail(data NewLoginData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var buf strings.Builder
	err := newLoginTmpl.Execute(&buf, data)
	return buf.String(), err
}
