package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// categoryTemplate describes how one form category becomes a Request.
type categoryTemplate struct {
	required []string           // inputs that must be non-empty
	name     string             // fixed sender name, empty means the name input
	subject  *template.Template // rendered with the inputs plus "product"
	body     *template.Template
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(text))
}

const (
	contactBody = `Name: {{.name}}
Email: {{.email}}

Message:
{{.message}}`

	supportBody = `Support Request Details:

Name: {{.name}}
Email: {{.email}}
Priority: {{.priority}}
Subject: {{.subject}}

Description:
{{.description}}`

	newsletterBody = `Hello {{.name}},

Thank you for subscribing to the {{.product}} newsletter!

You'll receive updates about:
- New features and product updates
- Industry insights and renewable energy news
- Beta access opportunities
- Company announcements

Best regards,
The {{.product}} Team`

	expertInterestBody = `Expert Panel Interest:

Email: {{.email}}

A user has expressed interest in joining the expert panel.
Please follow up to collect additional details about their expertise and experience.`

	expertApplicationBody = `Expert Panel Application:

Name: {{.name}}
Email: {{.email}}

Area of Expertise:
{{.expertise}}

Relevant Experience:
{{.experience}}`

	waitingListBody = `Waiting List Registration:

Email: {{.email}}

A user has joined the {{.product}} waiting list.
Please add them to the early access list and follow up when places open.`

	demoRequestBody = `Demo Request:

Email: {{.email}}

A user has requested a demo of {{.product}}.
Please follow up to schedule a session.`

	ctaBody = `CTA Form Submission:

Name: {{.name}}
Email: {{.email}}
Company Role: {{.companyRole}}

Challenge Answer:
{{.challengeAnswer}}`
)

var categoryTemplates = map[Category]*categoryTemplate{
	CategoryContact: {
		required: []string{FieldName, FieldEmail, FieldMessage},
		subject:  mustParse("contact-subject", "Contact Form Submission from {{.name}}"),
		body:     mustParse("contact-body", contactBody),
	},
	CategorySupport: {
		required: []string{FieldName, FieldEmail, FieldSubject, FieldDescription},
		subject:  mustParse("support-subject", "[{{upper .priority}}] Support Request: {{.subject}}"),
		body:     mustParse("support-body", supportBody),
	},
	CategoryNewsletter: {
		required: []string{FieldName, FieldEmail},
		subject:  mustParse("newsletter-subject", "Newsletter Subscription - {{.product}}"),
		body:     mustParse("newsletter-body", newsletterBody),
	},
	CategoryExpertPanelInterest: {
		required: []string{FieldEmail},
		name:     "Expert Panel Interested User",
		subject:  mustParse("expert-interest-subject", "Expert Panel Interest Expression"),
		body:     mustParse("expert-interest-body", expertInterestBody),
	},
	CategoryExpertPanelApplication: {
		required: []string{FieldName, FieldEmail, FieldExpertise, FieldExperience},
		subject:  mustParse("expert-application-subject", "Expert Panel Application from {{.name}}"),
		body:     mustParse("expert-application-body", expertApplicationBody),
	},
	CategoryWaitingList: {
		required: []string{FieldEmail},
		name:     "Waiting List User",
		subject:  mustParse("waiting-list-subject", "Waiting List Registration"),
		body:     mustParse("waiting-list-body", waitingListBody),
	},
	CategoryDemoRequest: {
		required: []string{FieldEmail},
		name:     "Demo Interested User",
		subject:  mustParse("demo-request-subject", "Demo Request"),
		body:     mustParse("demo-request-body", demoRequestBody),
	},
	CategoryCTA: {
		required: []string{FieldName, FieldEmail, FieldCompanyRole, FieldChallengeAnswer},
		subject:  mustParse("cta-subject", "CTA Form Submission from {{.name}}"),
		body:     mustParse("cta-body", ctaBody),
	},
	CategoryGeneric: {
		required: []string{FieldName, FieldEmail, FieldSubject, FieldMessage},
		subject:  mustParse("generic-subject", "{{.subject}}"),
		body:     mustParse("generic-body", "{{.message}}"),
	},
}

// DefaultPriority applies to support requests that do not name one.
const DefaultPriority = "medium"

// Builder turns form inputs into validated Requests.
type Builder struct {
	product string
}

// NewBuilder returns a Builder that names product in subjects and bodies.
func NewBuilder(product string) *Builder {
	return &Builder{product: strings.TrimSpace(product)}
}

// Build renders the category template for fields and validates the result.
func (b *Builder) Build(category Category, fields Fields) (*Request, error) {
	tmpl, ok := categoryTemplates[category]
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown notification category %q", category)}
	}

	var missing []string
	for _, key := range tmpl.required {
		if fields.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			Fields: missing,
			Reason: "Missing required fields: " + strings.Join(missing, ", "),
		}
	}

	data := make(map[string]string, len(fields)+1)
	for k := range fields {
		data[k] = fields.Get(k)
	}
	data["product"] = b.product
	if category == CategorySupport && data[FieldPriority] == "" {
		data[FieldPriority] = DefaultPriority
	}

	subject, err := render(tmpl.subject, data)
	if err != nil {
		return nil, err
	}
	body, err := render(tmpl.body, data)
	if err != nil {
		return nil, err
	}

	name := tmpl.name
	if name == "" {
		name = data[FieldName]
	}

	req := &Request{
		Category:       category,
		Name:           name,
		Email:          data[FieldEmail],
		Subject:        subject,
		Body:           body,
		To:             data[FieldTo],
		ChallengeToken: data[FieldChallengeToken],
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

func render(tmpl *template.Template, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
