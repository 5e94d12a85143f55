package notify

import (
	"bytes"
	goembed "embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS goembed.FS

var (
	subjectTmpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/change_subject.txt"))
	textTmpl    = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/change.txt"))
	htmlTmpl    = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/change.html"))
)

type mailData struct {
	Message
}

func (d mailData) ColorHex() string {
	return fmt.Sprintf("#%06x", d.Color)
}

// renderMail produces the subject, HTML and text bodies of an e-mail.
func renderMail(msg Message) (subject, html, text string, err error) {
	data := mailData{Message: msg}

	var buf bytes.Buffer
	if err := subjectTmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	html = buf.String()

	buf.Reset()
	if err := textTmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	text = buf.String()

	return subject, html, text, nil
}
