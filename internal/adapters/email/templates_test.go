package email

import (
	"strings"
	"testing"

	"gymdesk/internal/domain/emaillog"
)

func TestRenderer_DefaultSubjects(t *testing.T) {
	r := NewRenderer(nil)
	vars := map[string]any{
		"first_name":         "Ana",
		"gym_name":           "Gym Desk",
		"frontend_url":       "http://localhost:5173",
		"days_until_due":     3,
		"due_date":           "2026-06-18",
		"days_since_checkin": 12,
	}

	tests := []struct {
		emailType string
		want      string
	}{
		{emaillog.TypeSubscription, "Subscription Reminder - Due in 3 days"},
		{emaillog.TypeMotivational, "Stay Strong! Your Fitness Journey Continues"},
		{emaillog.TypeBirthday, "Happy Birthday, Ana! 🎉"},
		{emaillog.TypeInactivity, "We Miss You! Come Back to the Gym"},
	}
	for _, tt := range tests {
		t.Run(tt.emailType, func(t *testing.T) {
			msg, err := r.Render(tt.emailType, vars)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if msg.Subject != tt.want {
				t.Errorf("Subject = %q, want %q", msg.Subject, tt.want)
			}
			if !strings.Contains(msg.HTML, "<p>") {
				t.Errorf("HTML body has no paragraphs: %q", msg.HTML)
			}
		})
	}
}

func TestRenderer_SubscriptionBody(t *testing.T) {
	r := NewRenderer(nil)

	msg, err := r.Render(emaillog.TypeSubscription, map[string]any{
		"first_name":     "Ana",
		"gym_name":       "Gym Desk",
		"frontend_url":   "http://localhost:5173",
		"days_until_due": 0,
		"due_date":       "2026-06-15",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(msg.Text, "today") {
		t.Errorf("due-today body should say today: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "basic membership") {
		t.Errorf("missing membership type should default to basic: %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, "<strong>2026-06-15</strong>") {
		t.Errorf("markdown emphasis not rendered: %q", msg.HTML)
	}
}

func TestRenderer_EscapesRawHTML(t *testing.T) {
	r := NewRenderer(map[string]Template{
		"custom": {Subject: "hi", Body: "Hello {{ first_name }}"},
	})

	msg, err := r.Render("custom", map[string]any{"first_name": "<script>alert(1)</script>"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Errorf("raw HTML leaked into output: %q", msg.HTML)
	}
}

func TestRenderer_UnknownType(t *testing.T) {
	r := NewRenderer(nil)
	if _, err := r.Render("newsletter", nil); err == nil {
		t.Error("expected error for unknown email type")
	}
}

func TestRenderer_BadTemplate(t *testing.T) {
	r := NewRenderer(map[string]Template{"broken": {Subject: "{% if x %}never closed", Body: "x"}})
	if _, err := r.Render("broken", nil); err == nil {
		t.Error("expected parse error")
	}
}
