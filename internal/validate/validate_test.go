package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@example.org", "x@y.z.w"}
	invalid := []string{"", "plain", "a@b", "a @b.co", "a@b .co", "@b.co", "a@@b.co"}

	for _, v := range valid {
		require.True(t, Email(v), v)
	}
	for _, v := range invalid {
		require.False(t, Email(v), v)
	}
}

func TestMobile(t *testing.T) {
	valid := []string{"+1 (555) 123-4567", "5551234567", "020 7946 0958"}
	invalid := []string{"", "12345", "555-CALL-NOW", "++15551234567"}

	for _, v := range valid {
		require.True(t, Mobile(v), v)
	}
	for _, v := range invalid {
		require.False(t, Mobile(v), v)
	}
}

func TestUpload(t *testing.T) {
	t.Run("TypeNotAllowed", func(t *testing.T) {
		err := Upload("a.png", "image/png", 10, UploadRules{AllowedTypes: []string{"message/rfc822", "text/plain"}})
		require.EqualError(t, err, "file type not allowed (allowed types: message/rfc822, text/plain)")
	})

	t.Run("TooLargeUsesDefault", func(t *testing.T) {
		err := Upload("a.eml", "", DefaultMaxUploadSize+1, UploadRules{})
		require.EqualError(t, err, "file too large (maximum size: 5 MB)")
	})

	t.Run("ExactLimitAllowed", func(t *testing.T) {
		require.NoError(t, Upload("a.eml", "", 1024, UploadRules{MaxSize: 1024}))
	})

	t.Run("EmailRules", func(t *testing.T) {
		rules := EmailUploadRules(16 * 1024 * 1024)
		require.NoError(t, Upload("Inbox/Report.EML", "", 100, rules))
		require.Error(t, Upload("report.txt", "", 100, rules))
	})
}

func TestRequired(t *testing.T) {
	fields := map[string]string{"email": "a@b.co", "name": "   ", "mobile": ""}
	require.Equal(t, []string{"name", "mobile", "otp"}, Required(fields, "email", "name", "mobile", "otp"))
	require.Empty(t, Required(fields, "email"))
}
