package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	text string
	err  error
	last LLMRequest
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.last = req
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

func newTestOracle(text string, err error) (*Oracle, *stubLLM) {
	stub := &stubLLM{text: text, err: err}
	return New(stub, "test-model", nil), stub
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{"plain label", "book", nil, "book"},
		{"label with prose", "The intent is: cancel.", nil, "cancel"},
		{"uppercase", "RESCHEDULE", nil, "reschedule"},
		{"unknown reply", "banana", nil, "unsupported"},
		{"oracle error", "", errors.New("boom"), "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOracle(tt.reply, tt.err)
			got := o.DetectIntent(context.Background(), []ChatMessage{
				{Role: ChatRoleUser, Content: "hello"},
			}, IntentContext{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectIntentSendsContext(t *testing.T) {
	o, stub := newTestOracle("book", nil)
	o.DetectIntent(context.Background(), []ChatMessage{
		{Role: ChatRoleUser, Content: "option 2"},
	}, IntentContext{UserName: "Jane Doe", CurrentStep: "booking_offer_slots", PreviousIntent: "book"})
	require.Len(t, stub.last.Messages, 1)
	assert.Contains(t, stub.last.Messages[0].Content, "booking_offer_slots")
	assert.Contains(t, stub.last.Messages[0].Content, "Jane Doe")
}

func TestMatchAppointment(t *testing.T) {
	candidates := []AppointmentCandidate{
		{ID: 17, ProviderName: "Dr. Kim", DateTime: "Friday, February 13th at 9 in the morning"},
		{ID: 23, ProviderName: "Dr. Osei", DateTime: "Monday, February 16th at 2 in the afternoon"},
	}

	t.Run("matches by id", func(t *testing.T) {
		o, _ := newTestOracle("23", nil)
		id, ok := o.MatchAppointment(context.Background(), "the monday one", candidates)
		require.True(t, ok)
		assert.Equal(t, 23, id)
	})

	t.Run("maps list position to id", func(t *testing.T) {
		o, _ := newTestOracle("2", nil)
		id, ok := o.MatchAppointment(context.Background(), "option 2", candidates)
		require.True(t, ok)
		assert.Equal(t, 23, id)
	})

	t.Run("none", func(t *testing.T) {
		o, _ := newTestOracle("NONE", nil)
		_, ok := o.MatchAppointment(context.Background(), "something else", candidates)
		assert.False(t, ok)
	})

	t.Run("empty candidate list", func(t *testing.T) {
		o, _ := newTestOracle("1", nil)
		_, ok := o.MatchAppointment(context.Background(), "option 1", nil)
		assert.False(t, ok)
	})
}

func TestParseDateTimeReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *ParsedDateTime
	}{
		{
			"named week",
			`{"kind":"range","when":"next_week"}`,
			&ParsedDateTime{Kind: "range", When: "next_week"},
		},
		{
			"date range",
			`{"kind":"range","fromDate":"2026-02-03","toDate":"2026-02-09"}`,
			&ParsedDateTime{Kind: "range", FromDate: "2026-02-03", ToDate: "2026-02-09"},
		},
		{
			"moment",
			`{"kind":"moment","isoUtc":"2026-02-06T09:30:00Z"}`,
			&ParsedDateTime{Kind: "moment", IsoUTC: "2026-02-06T09:30:00Z"},
		},
		{
			"moment inside code fence",
			"```json\n{\"kind\":\"moment\",\"isoUtc\":\"2026-02-06T09:30:00Z\"}\n```",
			&ParsedDateTime{Kind: "moment", IsoUTC: "2026-02-06T09:30:00Z"},
		},
		{"invalid literal", "INVALID", nil},
		{"garbage", "sure, here you go", nil},
		{"bad date shape", `{"kind":"range","fromDate":"Feb 3","toDate":"Feb 9"}`, nil},
		{"bad moment", `{"kind":"moment","isoUtc":"tomorrow"}`, nil},
		{"unknown when", `{"kind":"range","when":"someday"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDateTimeReply(tt.raw))
		})
	}
}

func TestConfirmYesNo(t *testing.T) {
	o, _ := newTestOracle("yes", nil)
	assert.True(t, o.ConfirmYesNo(context.Background(), "Is that correct?", "yep"))

	o, _ = newTestOracle("no", nil)
	assert.False(t, o.ConfirmYesNo(context.Background(), "Is that correct?", "not really"))

	o, _ = newTestOracle("", errors.New("timeout"))
	assert.False(t, o.ConfirmYesNo(context.Background(), "Is that correct?", "yes"))
}

func TestAnalyzeRegistrationResponse(t *testing.T) {
	t.Run("valid verdict", func(t *testing.T) {
		o, _ := newTestOracle(`{"valid":false,"action":"clarify","clarificationMessage":"Could I have your last name too?"}`, nil)
		got := o.AnalyzeRegistrationResponse(context.Background(), "name", "What is your full legal name?", "Jane", nil)
		assert.False(t, got.Valid)
		assert.Equal(t, "clarify", got.Action)
		assert.Equal(t, "Could I have your last name too?", got.ClarificationMessage)
	})

	t.Run("malformed reply defaults to accept", func(t *testing.T) {
		o, _ := newTestOracle("hmm not sure", nil)
		got := o.AnalyzeRegistrationResponse(context.Background(), "dob", "What is your date of birth?", "March 15 1999", nil)
		assert.True(t, got.Valid)
		assert.Equal(t, "accept", got.Action)
	})

	t.Run("unknown action defaults to accept", func(t *testing.T) {
		o, _ := newTestOracle(`{"valid":true,"action":"escalate"}`, nil)
		got := o.AnalyzeRegistrationResponse(context.Background(), "dob", "q", "a", nil)
		assert.Equal(t, "accept", got.Action)
	})
}

func TestExtractFullName(t *testing.T) {
	o, _ := newTestOracle("Jane Doe", nil)
	name, ok := o.ExtractFullName(context.Background(), "it would be jane doe")
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", name)

	o, _ = newTestOracle("NONE", nil)
	_, ok = o.ExtractFullName(context.Background(), "what do you mean")
	assert.False(t, ok)
}

func TestParseDOB(t *testing.T) {
	o, _ := newTestOracle("1999-03-15", nil)
	assert.Equal(t, "1999-03-15", o.ParseDOB(context.Background(), "March 15 1999"))

	o, _ = newTestOracle("The date is 1999-03-15.", nil)
	assert.Equal(t, "1999-03-15", o.ParseDOB(context.Background(), "March 15 1999"))

	o, _ = newTestOracle("INVALID", nil)
	assert.Empty(t, o.ParseDOB(context.Background(), "the blue one"))
}

func TestVerifyDOB(t *testing.T) {
	o, _ := newTestOracle("1999-03-15", nil)
	assert.True(t, o.VerifyDOB(context.Background(), "March 15 1999", "1999-03-15T00:00:00Z"))
	assert.False(t, o.VerifyDOB(context.Background(), "March 15 1999", "1990-03-15"))

	o, _ = newTestOracle("INVALID", nil)
	assert.False(t, o.VerifyDOB(context.Background(), "mumble", "1999-03-15"))
}

func TestParseCorrection(t *testing.T) {
	o, _ := newTestOracle(`{"correcting":true,"field":"phone","newValue":"555-123-4567"}`, nil)
	c := o.ParseCorrection(context.Background(), "actually my phone is 555-123-4567", "summary")
	assert.True(t, c.Correcting)
	assert.Equal(t, "phone", c.Field)
	assert.Equal(t, "555-123-4567", c.NewValue)

	o, _ = newTestOracle(`{"correcting":true,"field":"shoe_size","newValue":"9"}`, nil)
	c = o.ParseCorrection(context.Background(), "size 9", "summary")
	assert.Empty(t, c.Field)

	o, _ = newTestOracle("not json", nil)
	c = o.ParseCorrection(context.Background(), "yes", "summary")
	assert.False(t, c.Correcting)
}

func TestNormalizeGender(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"female", "female"},
		{"male", "male"},
		{"other", "other"},
		{"definitely female", "female"},
		{"??", "other"},
	}
	for _, tt := range tests {
		o, _ := newTestOracle(tt.reply, nil)
		assert.Equal(t, tt.want, o.NormalizeGender(context.Background(), "x"))
	}
}

func TestParseEmail(t *testing.T) {
	t.Run("fast path skips the oracle", func(t *testing.T) {
		o, stub := newTestOracle("should-not-be-used", nil)
		email, ok := o.ParseEmail(context.Background(), "Jane@Example.COM")
		require.True(t, ok)
		assert.Equal(t, "jane@example.com", email)
		assert.Empty(t, stub.last.Messages)
	})

	t.Run("spoken form", func(t *testing.T) {
		o, _ := newTestOracle("jane@gmail.com", nil)
		email, ok := o.ParseEmail(context.Background(), "jane at gmail dot come")
		require.True(t, ok)
		assert.Equal(t, "jane@gmail.com", email)
	})

	t.Run("none", func(t *testing.T) {
		o, _ := newTestOracle("NONE", nil)
		_, ok := o.ParseEmail(context.Background(), "no thanks")
		assert.False(t, ok)
	})

	t.Run("reply re-validated", func(t *testing.T) {
		o, _ := newTestOracle("not an email", nil)
		_, ok := o.ParseEmail(context.Background(), "jane at gmail")
		assert.False(t, ok)
	})
}

func TestDOBWordsFallback(t *testing.T) {
	o, _ := newTestOracle("", errors.New("down"))
	assert.Equal(t, "March 15th, 1999", o.DOBWords(context.Background(), "1999-03-15"))
}

func TestFallbackClient(t *testing.T) {
	primaryErr := errors.New("primary down")

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubLLM{text: "ok"}
		c := NewFallbackClient(primary, &stubLLM{text: "backup"}, nil)
		resp, err := c.Complete(context.Background(), LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text)
	})

	t.Run("falls back on primary failure", func(t *testing.T) {
		c := NewFallbackClient(&stubLLM{err: primaryErr}, &stubLLM{text: "backup"}, nil)
		resp, err := c.Complete(context.Background(), LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "backup", resp.Text)
	})

	t.Run("no fallback returns primary error", func(t *testing.T) {
		c := NewFallbackClient(&stubLLM{err: primaryErr}, nil, nil)
		_, err := c.Complete(context.Background(), LLMRequest{})
		assert.ErrorIs(t, err, primaryErr)
	})

	t.Run("both fail returns fallback error", func(t *testing.T) {
		fallbackErr := errors.New("backup down")
		c := NewFallbackClient(&stubLLM{err: primaryErr}, &stubLLM{err: fallbackErr}, nil)
		_, err := c.Complete(context.Background(), LLMRequest{})
		assert.ErrorIs(t, err, fallbackErr)
	})
}
