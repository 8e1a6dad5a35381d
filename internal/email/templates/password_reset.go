// internal/email/templates/password_reset.go
package templates

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed password_reset.html
var passwordResetHTML string

var passwordResetTmpl = template.Must(template.New("password_reset").Parse(passwordResetHTML))

type PasswordResetData struct {
	ResetLink string
	ExpiresIn string
	Year      int
}

func RenderPasswordResetEmail(data PasswordResetData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	if data.ExpiresIn == "" {
		data.ExpiresIn = "1 hour"
	}
	var buf strings.Builder
	if err := passwordResetTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}
