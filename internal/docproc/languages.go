package docproc

// Languages maps human-readable names to tesseract language codes. The
// OCR engine only understands the codes; translating display names is
// the caller's job and this map is how they do it.
var Languages = map[string]string{
	"English": "eng",
	"French":  "fra",
	"Arabic":  "ara",
	"Spanish": "spa",
}

// LanguageCode resolves a display name or a raw engine code. Unknown
// values fall back to English.
func LanguageCode(language string) string {
	if code, ok := Languages[language]; ok {
		return code
	}
	for _, code := range Languages {
		if code == language {
			return code
		}
	}
	return "eng"
}
