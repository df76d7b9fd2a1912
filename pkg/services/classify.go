package services

import "strings"

// ResultKind tags what an image-generation response actually contained.
type ResultKind int

const (
	ResultUnrecognized ResultKind = iota
	ResultImage
	ResultText
)

// ModelResult is the classified outcome of an image-generation call.
// For ResultImage, MimeType and Data (base64) are set; for ResultText only
// Text is set.
type ModelResult struct {
	Kind     ResultKind
	MimeType string
	Data     string
	Text     string
}

// ClassifyImageResponse inspects a generateContent reply from the image
// model. Preference order: an inlineData part wins; otherwise text that
// looks like a raw base64 blob is treated as a PNG payload (some model
// versions return the image bytes in the text part); otherwise non-empty
// text; otherwise unrecognized.
func ClassifyImageResponse(resp *generateResponse) ModelResult {
	for _, p := range resp.parts() {
		if p.InlineData != nil && p.InlineData.Data != "" {
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return ModelResult{Kind: ResultImage, MimeType: mime, Data: p.InlineData.Data}
		}
	}
	text := strings.TrimSpace(resp.text())
	if looksLikeBase64(text) {
		return ModelResult{Kind: ResultImage, MimeType: "image/png", Data: text}
	}
	if text != "" {
		return ModelResult{Kind: ResultText, Text: text}
	}
	return ModelResult{Kind: ResultUnrecognized}
}

// looksLikeBase64 reports whether s is plausibly a bare base64 image
// payload: long enough to not be prose and drawn only from the standard
// base64 alphabet.
func looksLikeBase64(s string) bool {
	if len(s) <= 1000 {
		return false
	}
	for _, r := range s {
		switch {
		case 'A' <= r && r <= 'Z':
		case 'a' <= r && r <= 'z':
		case '0' <= r && r <= '9':
		case r == '+' || r == '/' || r == '=':
		default:
			return false
		}
	}
	return true
}
