package mailer

import "fmt"

// htmlShell is the shared HTML frame around every transactional mail.
const htmlShell = `<!DOCTYPE html>
<html>
<body style="background-color:#f6f6f6;font-family:sans-serif;margin:0;padding:20px;">
  <div style="max-width:580px;margin:0 auto;background:#ffffff;border-radius:12px;overflow:hidden;">
    <div style="background-color:#212529;padding:24px;text-align:center;">
      <div style="color:#ffffff;font-size:18px;letter-spacing:1px;text-transform:uppercase;font-weight:700;">pollbox</div>
    </div>
    <div style="padding:40px 30px;text-align:center;">
      <h1 style="font-size:24px;margin:0 0 25px;">%s</h1>
      <p style="font-size:16px;color:#555555;margin:0 0 30px;">%s</p>
      <a href="%s" style="background-color:#212529;border-radius:50px;color:#ffffff;display:inline-block;padding:14px 30px;text-decoration:none;font-weight:bold;">%s</a>
      <p style="font-size:13px;color:#999999;margin:30px 0 0;">If you did not request this, you can safely ignore this email.</p>
    </div>
  </div>
</body>
</html>`

func render(to, subject, heading, body, actionURL, actionText string) Message {
	text := fmt.Sprintf("%s\n\n%s\n\n%s\n\nIf you did not request this, you can safely ignore this email.\n",
		heading, body, actionURL)
	return Message{
		To:      to,
		Subject: subject,
		Text:    text,
		HTML:    fmt.Sprintf(htmlShell, heading, body, actionURL, actionText),
	}
}

// VerificationMessage carries the account activation link.
func VerificationMessage(baseURL, to, token string) Message {
	link := fmt.Sprintf("%s/api/v1/auth/verify/%s", baseURL, token)
	return render(to,
		"Confirm your account",
		"Welcome to pollbox",
		"Click the button below to confirm your email address and activate your account. The link is valid for 24 hours.",
		link,
		"Confirm account",
	)
}

// PasswordResetMessage carries the password reset link.
func PasswordResetMessage(baseURL, to, token string) Message {
	link := fmt.Sprintf("%s/reset-password/%s", baseURL, token)
	return render(to,
		"Reset your password",
		"Password reset requested",
		"Click the button below to choose a new password. The link expires in 30 minutes.",
		link,
		"Reset password",
	)
}

// EmailChangeMessage carries the new-address confirmation link.
func EmailChangeMessage(baseURL, to, token string) Message {
	link := fmt.Sprintf("%s/api/v1/my_profile/confirm_email_change/%s", baseURL, token)
	return render(to,
		"Confirm your new email",
		"Email change requested",
		"Click the button below to confirm this address as your new login email. You will be signed out after confirming.",
		link,
		"Confirm new email",
	)
}
