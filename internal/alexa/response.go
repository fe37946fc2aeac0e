package alexa

// ResponseEnvelope is the top-level response payload returned to the platform.
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession bool          `json:"shouldEndSession"`
}

type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type Reprompt struct {
	OutputSpeech *OutputSpeech `json:"outputSpeech"`
}

// ResponseBuilder assembles a ResponseEnvelope. The zero value produces an
// empty response that keeps the session open.
type ResponseBuilder struct {
	speech     string
	reprompt   string
	attributes map[string]any
	endSession bool
}

func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// Speak sets the plain-text speech output.
func (b *ResponseBuilder) Speak(text string) *ResponseBuilder {
	b.speech = text
	return b
}

// Reprompt sets the reprompt spoken when the user does not answer.
func (b *ResponseBuilder) Reprompt(text string) *ResponseBuilder {
	b.reprompt = text
	return b
}

// WithSessionAttributes replaces the session attribute bag round-tripped by
// the platform. Passing an empty non-nil map clears previously stored state.
func (b *ResponseBuilder) WithSessionAttributes(attrs map[string]any) *ResponseBuilder {
	b.attributes = attrs
	return b
}

// EndSession marks the session for termination.
func (b *ResponseBuilder) EndSession() *ResponseBuilder {
	b.endSession = true
	return b
}

func (b *ResponseBuilder) Build() ResponseEnvelope {
	env := ResponseEnvelope{
		Version:           "1.0",
		SessionAttributes: b.attributes,
		Response: Response{
			ShouldEndSession: b.endSession,
		},
	}
	if b.speech != "" {
		env.Response.OutputSpeech = &OutputSpeech{Type: "PlainText", Text: b.speech}
	}
	if b.reprompt != "" {
		env.Response.Reprompt = &Reprompt{
			OutputSpeech: &OutputSpeech{Type: "PlainText", Text: b.reprompt},
		}
	}
	return env
}
