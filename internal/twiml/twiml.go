// Package twiml renders the carrier's call markup. The verb vocabulary is
// an external wire protocol (Say, Play, Gather, Pause, Dial, Redirect,
// Hangup) and must match the carrier's parser byte for byte, so rendering
// is explicit encoding/xml with a fixed header.
package twiml

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Say speaks text with the carrier's built-in voice. It is the degraded
// path when no pre-rendered audio is available.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Play plays a previously rendered audio asset by absolute URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Pause waits the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Gather captures caller speech (or keypad digits) and posts the result to
// Action. A nested Say is spoken before listening, which is how re-prompts
// carry their clarification phrase.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Say           *Say     `xml:"Say,omitempty"`
}

// Dial transfers the call to a human agent.
type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:",chardata"`
}

// Redirect re-enters the webhook flow at another URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is an ordered sequence of verbs returned from a webhook handler.
// Verb order is significant: chunked playback emits its Play verbs in
// sequence and any Gather strictly after them.
type Response struct {
	verbs []any
}

// NewResponse creates an empty markup response.
func NewResponse() *Response {
	return &Response{}
}

// Add appends verbs in order.
func (r *Response) Add(verbs ...any) *Response {
	r.verbs = append(r.verbs, verbs...)
	return r
}

// Verbs returns the ordered verb sequence, primarily for tests.
func (r *Response) Verbs() []any {
	return r.verbs
}

// MarshalXML implements xml.Marshaler, encoding <Response> with each verb
// in insertion order.
func (r *Response) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "Response"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, v := range r.verbs {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Render returns the complete markup document including the XML header.
func (r *Response) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encoding markup response: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing markup response: %w", err)
	}
	return buf.Bytes(), nil
}
