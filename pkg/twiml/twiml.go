// Package twiml builds the voice XML answered to IVR webhooks.
package twiml

import (
	"encoding/xml"
)

// Say speaks text to the caller
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

// Gather collects keypad digits and posts them to Action
type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	Says      []Say
}

// Say appends spoken text inside the gather
func (g *Gather) Say(text string) *Gather {
	g.Says = append(g.Says, Say{Text: text})
	return g
}

// Redirect moves the call to another webhook
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is the root element; verbs execute in insertion order
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

// NewResponse creates an empty response
func NewResponse() *Response {
	return &Response{}
}

// Say appends a spoken message
func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Text: text})
	return r
}

// Gather appends a digit gather and returns it so prompts can be added
func (r *Response) Gather(numDigits int, action string) *Gather {
	g := &Gather{NumDigits: numDigits, Action: action}
	r.Verbs = append(r.Verbs, g)
	return g
}

// Redirect appends a redirect
func (r *Response) Redirect(url string) *Response {
	r.Verbs = append(r.Verbs, Redirect{URL: url})
	return r
}

// Hangup appends a hangup
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// String renders the document with the XML declaration
func (r *Response) String() string {
	out, err := xml.Marshal(r)
	if err != nil {
		return xml.Header + "<Response></Response>"
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` + string(out)
}
