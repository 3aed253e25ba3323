package email

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/osteele/liquid"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"gymdesk/internal/domain/emaillog"
)

// Template is one reminder email. Subject and Body are Liquid templates;
// Body renders to Markdown, which is converted to HTML.
type Template struct {
	Subject string
	Body    string
}

// DefaultTemplates holds the reminder emails keyed by email type.
var DefaultTemplates = map[string]Template{
	emaillog.TypeSubscription: {
		Subject: "Subscription Reminder - Due in {{ days_until_due }} days",
		Body: `Hi {{ first_name }},

Your {{ membership_type | default: "basic" }} membership at {{ gym_name }} is due on **{{ due_date }}**
{% if days_until_due == 0 %}today{% else %}in {{ days_until_due }} days{% endif %}.

Renew at the front desk or online: [{{ frontend_url }}]({{ frontend_url }})

See you on the floor,
{{ gym_name }}
`,
	},
	emaillog.TypeMotivational: {
		Subject: "Stay Strong! Your Fitness Journey Continues",
		Body: `Hi {{ first_name }},

Every session counts. Keep showing up and the results will follow.

Plan your next workout: [{{ frontend_url }}]({{ frontend_url }})

{{ gym_name }}
`,
	},
	emaillog.TypeBirthday: {
		Subject: "Happy Birthday, {{ first_name }}! 🎉",
		Body: `Happy birthday, {{ first_name }}!

Everyone at {{ gym_name }} wishes you a great day{% if age %} and a strong year {{ age }}{% endif %}.

Treat yourself to a session on us this week.
`,
	},
	emaillog.TypeInactivity: {
		Subject: "We Miss You! Come Back to the Gym",
		Body: `Hi {{ first_name }},

{% if days_since_checkin %}It has been {{ days_since_checkin }} days since your last visit.{% else %}We have not seen you at the gym yet.{% endif %}
Your membership is waiting for you.

Check the timetable: [{{ frontend_url }}]({{ frontend_url }})

{{ gym_name }}
`,
	},
}

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
	Text    string // the rendered Markdown
}

// Renderer renders reminder templates with Liquid variables and Markdown bodies.
// Safe for concurrent use.
type Renderer struct {
	engine    *liquid.Engine
	md        goldmark.Markdown
	templates map[string]Template
	cache     sync.Map // template source -> *liquid.Template
}

// NewRenderer creates a Renderer. A nil map uses DefaultTemplates.
func NewRenderer(templates map[string]Template) *Renderer {
	if templates == nil {
		templates = DefaultTemplates
	}
	return &Renderer{
		engine: liquid.NewEngine(),
		// Raw HTML in the body is escaped (WithUnsafe is not set).
		md:        goldmark.New(goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps())),
		templates: templates,
	}
}

// Render renders the template for emailType with vars.
// PRE: emailType has a template
// POST: Subject and Text are Liquid output; HTML is Text converted from Markdown
func (r *Renderer) Render(emailType string, vars map[string]any) (Message, error) {
	tmpl, ok := r.templates[emailType]
	if !ok {
		return Message{}, fmt.Errorf("no email template for %q", emailType)
	}
	subject, err := r.renderString(tmpl.Subject, vars)
	if err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", emailType, err)
	}
	text, err := r.renderString(tmpl.Body, vars)
	if err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", emailType, err)
	}
	var html bytes.Buffer
	if err := r.md.Convert([]byte(text), &html); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", emailType, err)
	}
	return Message{Subject: subject, HTML: html.String(), Text: text}, nil
}

func (r *Renderer) renderString(src string, vars map[string]any) (string, error) {
	var tpl *liquid.Template
	if cached, ok := r.cache.Load(src); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, perr := r.engine.ParseString(src)
		if perr != nil {
			return "", perr
		}
		r.cache.Store(src, parsed)
		tpl = parsed
	}
	out, rerr := tpl.RenderString(vars)
	if rerr != nil {
		return "", rerr
	}
	return out, nil
}
