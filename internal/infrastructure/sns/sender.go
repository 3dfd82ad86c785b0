package sns

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-api-authcore/internal/config"
	"github.com/go-api-authcore/internal/infrastructure/otpmsg"
)

// publisher is the subset of the SNS client the sender uses.
type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender delivers one-time codes by SMS via AWS SNS.
type Sender struct {
	client      publisher
	senderID    string
	countryCode string // prefixed to numbers submitted without a leading +
}

func NewSender(cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Sender{
		client:      sns.NewFromConfig(awsCfg, opts...),
		senderID:    cfg.SNSSenderID,
		countryCode: cfg.SMSCountryCode,
	}, nil
}

// SendOTPSMS publishes the code for purpose to number as a transactional SMS.
func (s *Sender) SendOTPSMS(ctx context.Context, number, code, purpose string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(e164(number, s.countryCode)),
		Message:           aws.String(otpmsg.SMSText(code, purpose)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// e164 drops the grouping separators contacts may carry and adds the default
// country code to numbers without one. SNS rejects anything else.
func e164(number, countryCode string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if strings.HasPrefix(strings.TrimSpace(number), "+") {
		return "+" + digits
	}
	return "+" + strings.TrimPrefix(countryCode, "+") + digits
}
