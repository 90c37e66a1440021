package mailer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	TemplateVerification = "verification"
	TemplateWelcome      = "welcome"
	TemplateResetRequest = "reset_request"
	TemplateResetSuccess = "reset_success"
)

type mailTemplate struct {
	subject  string
	category string
	body     string
}

// Bodies are Markdown. Values that come from users go through md, which
// escapes Markdown punctuation in the HTML part and leaves the text part as is.
var mailTemplates = map[string]mailTemplate{
	TemplateVerification: {
		subject:  "Verify your email",
		category: "Email verification",
		body: `# Verify your email

Hello,

Thank you for signing up! Your verification code is:

## {{.Code}}

Enter this code on the verification page to complete your registration.
This code will expire in {{.ExpiresIn}}.

If you didn't create an account with us, please ignore this email.
`,
	},
	TemplateWelcome: {
		subject:  "Welcome to {{.Company}}",
		category: "Welcome",
		body: `# Welcome, {{md .Name}}!

Your email address has been verified and your {{md .Company}} account is ready.
`,
	},
	TemplateResetRequest: {
		subject:  "Reset your password",
		category: "Password reset",
		body: `# Password reset

We received a request to reset your password. If you didn't make this
request, please ignore this email.

[Reset password]({{.ResetURL}})

This link will expire in {{.ExpiresIn}} for security reasons.
`,
	},
	TemplateResetSuccess: {
		subject:  "Password reset successful",
		category: "Password reset",
		body: `# Password reset successful

Your password has been successfully reset.

If you did not initiate this password reset, please contact our support team
immediately.
`,
	},
}

type Rendered struct {
	Subject  string
	Category string
	Text     string
	HTML     string
}

const markdownPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// escapeMarkdown makes s render as literal text inside a Markdown block.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\r' || r == '\n':
			b.WriteByte(' ')
		case strings.ContainsRune(markdownPunct, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func plain(s string) string { return s }

type Renderer struct {
	md       goldmark.Markdown
	subjects map[string]*template.Template
	texts    map[string]*template.Template
	sources  map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		md:       goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		subjects: make(map[string]*template.Template, len(mailTemplates)),
		texts:    make(map[string]*template.Template, len(mailTemplates)),
		sources:  make(map[string]*template.Template, len(mailTemplates)),
	}
	for name, tpl := range mailTemplates {
		subject, err := template.New(name + "_subject").Parse(tpl.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", name, err)
		}
		text, err := template.New(name).Funcs(template.FuncMap{"md": plain}).Parse(tpl.body)
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", name, err)
		}
		source, err := template.New(name).Funcs(template.FuncMap{"md": escapeMarkdown}).Parse(tpl.body)
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", name, err)
		}
		r.subjects[name] = subject
		r.texts[name] = text
		r.sources[name] = source
	}
	return r, nil
}

func (r *Renderer) Render(name string, data interface{}) (*Rendered, error) {
	text, ok := r.texts[name]
	if !ok {
		return nil, fmt.Errorf("unknown mail template %q", name)
	}
	var subject, plainText, source, html bytes.Buffer
	if err := r.subjects[name].Execute(&subject, data); err != nil {
		return nil, err
	}
	if err := text.Execute(&plainText, data); err != nil {
		return nil, err
	}
	if err := r.sources[name].Execute(&source, data); err != nil {
		return nil, err
	}
	if err := r.md.Convert(source.Bytes(), &html); err != nil {
		return nil, err
	}
	return &Rendered{
		Subject:  subject.String(),
		Category: mailTemplates[name].category,
		Text:     plainText.String(),
		HTML:     html.String(),
	}, nil
}
