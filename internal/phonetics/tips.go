package phonetics

// Tip describes how to articulate a German phoneme and what learners
// typically substitute for it.
type Tip struct {
	Phoneme      string
	Description  string
	Articulation string
	CommonErrors []string
}

var germanTips = map[string]Tip{
	"ʃt": {
		Phoneme:      "ʃt",
		Description:  "Initial St cluster",
		Articulation: "Round your lips slightly like 'sh' and immediately follow with a sharp 't'.",
		CommonErrors: []string{"st"},
	},
	"ʃp": {
		Phoneme:      "ʃp",
		Description:  "Initial Sp cluster",
		Articulation: "Form 'sh' with rounded lips, then close lips tightly for the 'p'.",
		CommonErrors: []string{"sp"},
	},
	"ç": {
		Phoneme:      "ç",
		Description:  "Ich-Laut (voiceless palatal fricative)",
		Articulation: "Spread lips in a smile, raise middle of tongue to hard palate, let air hiss through.",
		CommonErrors: []string{"ʃ", "k", "x"},
	},
	"x": {
		Phoneme:      "x",
		Description:  "Ach-Laut (voiceless velar fricative)",
		Articulation: "Like Scottish 'loch'. Air friction at back of mouth, not a 'k'.",
		CommonErrors: []string{"k", "h"},
	},
	"y": {
		Phoneme:      "y",
		Description:  "Close front rounded vowel (ü)",
		Articulation: "Say 'ee' but round your lips like saying 'oo'. Keep tongue forward.",
		CommonErrors: []string{"i", "u"},
	},
	"ø": {
		Phoneme:      "ø",
		Description:  "Close-mid front rounded vowel (ö)",
		Articulation: "Say 'e' (as in 'bed') but round your lips. Tongue stays forward.",
		CommonErrors: []string{"e", "o"},
	},
	"ʁ": {
		Phoneme:      "ʁ",
		Description:  "Voiced uvular fricative (German R)",
		Articulation: "Gargling sound at back of throat. Don't roll with tongue tip.",
		CommonErrors: []string{"r", "ɹ"},
	},
}

// LookupTip returns the articulation tip for a phoneme. The phoneme is
// tokenized first so "t͡s" and "ts" resolve to the same entry.
func LookupTip(phoneme string) (Tip, bool) {
	if tip, ok := germanTips[phoneme]; ok {
		return cloneTip(tip), true
	}
	joined := Tokenize(phoneme).String()
	tip, ok := germanTips[joined]
	if !ok {
		return Tip{}, false
	}
	return cloneTip(tip), true
}

// IsCommonError reports whether produced is a known substitution for the
// target phoneme.
func IsCommonError(target, produced string) bool {
	tip, ok := germanTips[target]
	if !ok {
		return false
	}
	for _, e := range tip.CommonErrors {
		if e == produced {
			return true
		}
	}
	return false
}

func cloneTip(t Tip) Tip {
	t.CommonErrors = append([]string(nil), t.CommonErrors...)
	return t
}
