package aws

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
)

func TestPlainTextEmail(t *testing.T) {
	input := PlainTextEmail("alerts@example.com", []string{"qa@example.com"}, "Critical finding", "body")

	assert.Equal(t, "alerts@example.com", aws.ToString(input.Source))
	assert.Equal(t, []string{"qa@example.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "Critical finding", aws.ToString(input.Message.Subject.Data))
	assert.Equal(t, "body", aws.ToString(input.Message.Body.Text.Data))
}

func TestSMS_Truncates(t *testing.T) {
	short := SMS("+15550100", "hello")
	assert.Equal(t, "hello", aws.ToString(short.Message))
	assert.Equal(t, "+15550100", aws.ToString(short.PhoneNumber))

	long := SMS("+15550100", strings.Repeat("x", 200))
	assert.Len(t, aws.ToString(long.Message), 160)
	assert.True(t, strings.HasSuffix(aws.ToString(long.Message), "..."))
}
