// Package guide builds integration-guide prompts and decodes the model's JSON reply.
package guide

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the guide package.
var (
	// ErrInvalidRequest marks a request missing system, device or connection.
	ErrInvalidRequest = errors.New("guide: system, device and connection are required")
	// ErrUnparsable marks a reply that is not a guide document.
	ErrUnparsable = errors.New("guide: reply is not a guide document")
)

// Request names the pieces of equipment a guide covers.
type Request struct {
	System     string `json:"system"`
	Device     string `json:"device"`
	Connection string `json:"connection"`
	Category   string `json:"category,omitempty"`
}

// Normalize trims every field.
func (r Request) Normalize() Request {
	r.System = strings.TrimSpace(r.System)
	r.Device = strings.TrimSpace(r.Device)
	r.Connection = strings.TrimSpace(r.Connection)
	r.Category = strings.TrimSpace(r.Category)
	return r
}

// Validate reports ErrInvalidRequest when a required field is blank.
func (r Request) Validate() error {
	r = r.Normalize()
	if r.System == "" || r.Device == "" || r.Connection == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Metadata returns the request fields stored with the usage log.
func (r Request) Metadata() map[string]any {
	r = r.Normalize()
	meta := map[string]any{
		"system":     r.System,
		"device":     r.Device,
		"connection": r.Connection,
	}
	if r.Category != "" {
		meta["category"] = r.Category
	}
	return meta
}

// Step is one numbered setup step.
type Step struct {
	StepNumber int      `json:"stepNumber"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tips       []string `json:"tips,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Code       string   `json:"code,omitempty"`
}

// Fix pairs a symptom with its remedy.
type Fix struct {
	Issue    string `json:"issue"`
	Solution string `json:"solution"`
}

// Guide is the structured integration guide returned to the client.
// Degraded guides carry only Title, Subtitle and Content.
type Guide struct {
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle"`
	Complexity      string   `json:"complexity,omitempty"`
	EstimatedTime   string   `json:"estimatedTime,omitempty"`
	Prerequisites   []string `json:"prerequisites,omitempty"`
	Steps           []Step   `json:"steps,omitempty"`
	Verification    []string `json:"verification,omitempty"`
	Troubleshooting []Fix    `json:"troubleshooting,omitempty"`
	Content         string   `json:"content,omitempty"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// Parse decodes a model reply into a Guide.
// On failure it returns a degraded guide wrapping the raw text together with ErrUnparsable.
func Parse(raw string, req Request) (Guide, error) {
	body := stripFences(raw)
	var g Guide
	errUnmarshal := json.Unmarshal([]byte(body), &g)
	if errUnmarshal == nil && strings.TrimSpace(g.Title) != "" {
		g.Degraded = false
		g.Content = ""
		return g, nil
	}
	if errUnmarshal == nil {
		errUnmarshal = errors.New("missing title")
	}
	return Fallback(raw, req), fmt.Errorf("%w: %v", ErrUnparsable, errUnmarshal)
}

// Fallback wraps raw text as a degraded guide titled after the request.
func Fallback(raw string, req Request) Guide {
	req = req.Normalize()
	return Guide{
		Title:    fmt.Sprintf("%s → %s", req.Device, req.System),
		Subtitle: "via " + req.Connection,
		Content:  raw,
		Degraded: true,
	}
}

// stripFences removes a surrounding markdown code fence, with or without a language tag.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
