// Package otpmsg renders the text of one-time-code messages shared by the
// email and SMS senders.
package otpmsg

import (
	"fmt"

	"github.com/go-api-authcore/internal/domain"
)

// Subject returns the email subject for purpose.
func Subject(purpose string) string {
	switch purpose {
	case domain.PurposeLogin, domain.PurposeLoginBackOffice, domain.PurposeLoginUser:
		return "Your login code"
	case domain.PurposeResetPassword:
		return "Your password reset code"
	default:
		return "Your verification code"
	}
}

// EmailBody returns the plain-text email body carrying code.
func EmailBody(code, purpose string) string {
	return fmt.Sprintf("%s: %s\r\n\r\nThe code expires in 5 minutes and can be used once.\r\nIf you did not request it, ignore this message.\r\n",
		Subject(purpose), code)
}

// SMSText returns the SMS text carrying code.
func SMSText(code, purpose string) string {
	return fmt.Sprintf("%s: %s (valid 5 min)", Subject(purpose), code)
}
