package twiml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseOrdering(t *testing.T) {
	r := NewResponse()
	r.Gather(1, "/api/ivr/select_clinic/").Say("Welcome. Please select a clinic. For City Care, press 1. ")
	r.Redirect("/api/ivr/welcome/")

	want := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Response><Gather numDigits="1" action="/api/ivr/select_clinic/">` +
		`<Say>Welcome. Please select a clinic. For City Care, press 1. </Say></Gather>` +
		`<Redirect>/api/ivr/welcome/</Redirect></Response>`
	assert.Equal(t, want, r.String())
}

func TestSayAndHangupEscapesText(t *testing.T) {
	r := NewResponse().Say("Dr. A & B are busy.").Hangup()

	assert.Equal(t,
		`<?xml version="1.0" encoding="UTF-8"?><Response><Say>Dr. A &amp; B are busy.</Say><Hangup></Hangup></Response>`,
		r.String())
}
