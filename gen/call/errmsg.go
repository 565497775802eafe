package call

// extractErrorMessage digs the human-readable message out of a vendor's
// error body. Vendors disagree on shape, so each gets its own path list;
// the generic fallbacks cover the rest.
func extractErrorMessage(provider string, body map[string]any) string {
	paths, ok := errorPaths[provider]
	if !ok {
		paths = genericErrorPaths
	}
	for _, path := range paths {
		if msg := dig(body, path); msg != "" {
			return msg
		}
	}
	for _, path := range genericErrorPaths {
		if msg := dig(body, path); msg != "" {
			return msg
		}
	}
	return ""
}

var genericErrorPaths = [][]string{
	{"error", "message"},
	{"error"},
	{"message"},
	{"detail"},
}

var errorPaths = map[string][][]string{
	"openai":     {{"error", "message"}},
	"gemini":     {{"error", "message"}, {"error", "status"}},
	"flux":       {{"detail"}},
	"runway":     {{"error"}, {"failure"}},
	"kling":      {{"message"}},
	"elevenlabs": {{"detail", "message"}, {"detail"}},
	"suno":       {{"msg"}, {"message"}},
	"minimax":    {{"base_resp", "status_msg"}},
}

// dig walks a JSON object along path and returns the string leaf, if any.
func dig(body map[string]any, path []string) string {
	cur := any(body)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[key]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}
