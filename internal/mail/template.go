package mail

import (
	"html/template"
	"strings"
)

var invitationTmpl = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: linear-gradient(135deg, #f97316 0%, #3b82f6 50%, #8b5cf6 100%); color: white; padding: 40px 20px; text-align: center; border-radius: 12px 12px 0 0; }
    .content { background: #ffffff; padding: 40px 30px; border: 1px solid #e5e7eb; border-top: none; }
    .button { display: inline-block; background: linear-gradient(135deg, #f97316 0%, #3b82f6 100%); color: white; text-decoration: none; padding: 14px 32px; border-radius: 8px; font-weight: 600; margin: 20px 0; }
    .details { background: #f9fafb; padding: 20px; border-radius: 8px; margin: 20px 0; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1 style="margin: 0; font-size: 28px;">🎉 You're Invited!</h1>
    </div>
    <div class="content">
      <p>Hi {{.Name}},</p>

      <p>You've been invited to an exclusive event:</p>

      <h2 style="color: #f97316; margin: 24px 0 16px;">{{.EventTitle}}</h2>

      <div class="details">
        <p style="margin: 8px 0;"><strong>📅 Date:</strong> {{.EventDate}}</p>
        <p style="margin: 8px 0;"><strong>⏰ Time:</strong> {{.EventTime}}</p>
      </div>

      <p>Before the event, chat with our virtual host to learn more about the space, the culture, and what makes this community special.</p>

      <div style="text-align: center;">
        <a href="{{.InviteLink}}" class="button">View Invitation &amp; RSVP</a>
      </div>
    </div>
    <div class="footer">
      <p>This invitation was sent to you by the event host.</p>
    </div>
  </div>
</body>
</html>
`))

func renderInvitation(inv Invitation) (string, error) {
	var out strings.Builder
	if err := invitationTmpl.Execute(&out, inv); err != nil {
		return "", err
	}
	return out.String(), nil
}
