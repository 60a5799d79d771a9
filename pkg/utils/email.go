package utils

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"
)

var (
	emailFrom     = os.Getenv("EMAIL_FROM")
	emailPassword = os.Getenv("EMAIL_PASSWORD")
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	companyName   = "Trapy"
)

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #2E86AB; margin: 0;">Trapy</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>© 2025 Trapy. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

func sendEmail(to []string, subject, body string) error {
	if emailFrom == "" || emailPassword == "" || smtpHost == "" || smtpPort == "" {
		return fmt.Errorf("email configuration not set")
	}

	// Headers
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", companyName, emailFrom)
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message strings.Builder
	for key, value := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	auth := smtp.PlainAuth("", emailFrom, emailPassword, smtpHost)
	addr := fmt.Sprintf("%s:%s", smtpHost, smtpPort)

	return smtp.SendMail(addr, auth, emailFrom, to, []byte(message.String()))
}

// SendBookingCancelledEmail informs a passenger that their booking was
// cancelled (by themselves, the driver, or a ride-level cancellation).
func SendBookingCancelledEmail(to, origin, destination string, departure time.Time) error {
	subject := "Your booking was cancelled"
	body := emailHeader + fmt.Sprintf(`
		<h3>Booking cancelled</h3>
		<p>Your booking on the ride below has been cancelled:</p>
		<p><strong>%s → %s</strong><br>Departure: %s</p>
		<p>Any reserved seats have been released. You can search for another ride at any time.</p>
	`, origin, destination, departure.Format("Mon, 02 Jan 2006 15:04")) + emailFooter

	return sendEmail([]string{to}, subject, body)
}

// SendRideCancelledEmail informs a passenger that the driver cancelled the
// entire ride their booking was on.
func SendRideCancelledEmail(to, origin, destination string, departure time.Time) error {
	subject := "Your ride was cancelled"
	body := emailHeader + fmt.Sprintf(`
		<h3>Ride cancelled</h3>
		<p>The driver cancelled the following ride, and your booking with it:</p>
		<p><strong>%s → %s</strong><br>Departure: %s</p>
		<p>We are sorry for the inconvenience. Similar rides may be available in the app.</p>
	`, origin, destination, departure.Format("Mon, 02 Jan 2006 15:04")) + emailFooter

	return sendEmail([]string{to}, subject, body)
}
