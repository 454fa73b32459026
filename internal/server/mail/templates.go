package mail

import (
	"bytes"
	"html/template"
)

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 32px;">
  <div style="max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h1 style="font-size: 22px; color: #222222;">{{.Title}}</h1>
    <p style="font-size: 15px; color: #333333;">{{.Intro}}</p>
    <p style="font-size: 28px; font-weight: bold; letter-spacing: 4px; color: #4F46E5;">{{.Secret}}</p>
    <p style="font-size: 13px; color: #888888;">{{.Outro}}</p>
  </div>
</body>
</html>`

var tmpl = template.Must(template.New("mail").Parse(layout))

type view struct {
	Title  string
	Intro  string
	Secret string
	Outro  string
}

// Message is a rendered mail ready for a Mailer.
type Message struct {
	Subject string
	HTML    string
}

func render(v view) (Message, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return Message{}, err
	}
	return Message{Subject: v.Title, HTML: buf.String()}, nil
}

func PasswordResetCode(code string) (Message, error) {
	return render(view{
		Title:  "Password reset code",
		Intro:  "Use this code to choose a new password:",
		Secret: code,
		Outro:  "If you did not ask for a reset, ignore this message.",
	})
}

func EmailConfirmationCode(code string) (Message, error) {
	return render(view{
		Title:  "Confirm your email",
		Intro:  "Enter this code in the game to confirm your email address:",
		Secret: code,
		Outro:  "The code can be used once.",
	})
}

func GeneratedPassword(username, password string) (Message, error) {
	return render(view{
		Title:  "Your sign-in password",
		Intro:  "A new password was generated for " + username + ":",
		Secret: password,
		Outro:  "Sign in with your email and this password. Any previous password no longer works.",
	})
}
