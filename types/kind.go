package types

// Kind identifies the media type a provider produces. The set is closed;
// provider names are scoped within a Kind.
type Kind string

const (
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindSpeech Kind = "tts"
	KindMusic  Kind = "music"
	KindText   Kind = "text"
)

// AllKinds lists every generation kind in a stable order.
var AllKinds = []Kind{KindImage, KindVideo, KindSpeech, KindMusic, KindText}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindSpeech, KindMusic, KindText:
		return true
	}
	return false
}

// Status is the shared lifecycle vocabulary every vendor's task states are
// mapped onto.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether a task in this status will never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusCancelled:
		return true
	}
	return false
}
