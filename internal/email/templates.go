package email

import "html/template"

// loadTemplates loads all email templates
func (s *Service) loadTemplates() {
	// Team Invitation Template
	s.templates["invitation"] = template.Must(template.New("invitation").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #10b981; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: #10b981; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h2>Join {{.TeamName}}</h2>
    </div>
    <div class="content">
        <p>Hello,</p>
        <p><strong>{{.InvitedBy}}</strong> invited you to join <strong>{{.TeamName}}</strong> as <strong>{{.Role}}</strong>.</p>

        <a href="{{.InviteURL}}" class="btn">Accept Invitation</a>

        <p style="margin-top: 16px; font-size: 14px; color: #6b7280;">
            This invitation expires on {{.ExpiresAt}}. If you were not expecting this email, you can ignore it.
        </p>
    </div>
    <div class="footer">
        TeamFund
    </div>
</div>
</body>
</html>
`))

	// Dues Reminder Template
	s.templates["dues_reminder"] = template.Must(template.New("dues_reminder").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #f59e0b 0%, #d97706 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
        .due-card { background: white; border-radius: 8px; padding: 20px; margin: 20px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .btn { display: inline-block; background: #f59e0b; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 15px; }
        .footer { text-align: center; color: #6b7280; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Dues Reminder</h1>
        </div>
        <div class="content">
            <p>Hi {{.Name}},</p>
            <p>{{.TeamName}} dues for <strong>{{.AthleteName}}</strong> are still unpaid.</p>

            <div class="due-card">
                <p><strong>Month:</strong> {{.DueMonth}}</p>
                <p><strong>Amount:</strong> {{.Amount}}</p>
            </div>

            <a href="{{.DuesURL}}" class="btn">Pay Dues</a>
        </div>
        <div class="footer">
            <p>This email was sent from TeamFund</p>
        </div>
    </div>
</body>
</html>
`))
}
