package language

import "github.com/dr-haathi/healthbot/internal/models"

// Labels holds the fixed, pre-translated strings used around an answer.
type Labels struct {
	Name              string
	Headings          map[models.Category]string
	Disclaimer        string
	Fallback          string
	TranslationNotice string
	Sources           string
}

var labels = map[models.Language]Labels{
	"en": {
		Name: "English",
		Headings: map[models.Category]string{
			models.CategoryDefinition: "Definition",
			models.CategorySymptoms:   "Symptoms",
			models.CategoryCauses:     "Causes",
			models.CategoryTreatment:  "Treatment",
			models.CategoryPrevention: "Prevention",
		},
		Disclaimer:        "This information is for educational purposes only. Always consult a qualified healthcare professional for medical advice, diagnosis, or treatment.",
		Fallback:          "I couldn't find reliable information about that topic. Please try rephrasing your question or consult a healthcare professional.",
		TranslationNotice: "Translation is currently unavailable, so this answer is shown in English.",
		Sources:           "Sources",
	},
	"hi": {
		Name: "हिंदी",
		Headings: map[models.Category]string{
			models.CategoryDefinition: "परिभाषा",
			models.CategorySymptoms:   "लक्षण",
			models.CategoryCauses:     "कारण",
			models.CategoryTreatment:  "उपचार",
			models.CategoryPrevention: "रोकथाम",
		},
		Disclaimer:        "यह जानकारी केवल शैक्षिक उद्देश्यों के लिए है। चिकित्सा सलाह, निदान या उपचार के लिए हमेशा किसी योग्य स्वास्थ्य पेशेवर से परामर्श करें।",
		Fallback:          "मुझे इस विषय पर विश्वसनीय जानकारी नहीं मिली। कृपया अपना प्रश्न दूसरे शब्दों में पूछें या किसी स्वास्थ्य पेशेवर से परामर्श करें।",
		TranslationNotice: "अनुवाद अभी उपलब्ध नहीं है, इसलिए यह उत्तर अंग्रेज़ी में दिखाया गया है।",
		Sources:           "स्रोत",
	},
	"es": {
		Name: "Español",
		Headings: map[models.Category]string{
			models.CategoryDefinition: "Definición",
			models.CategorySymptoms:   "Síntomas",
			models.CategoryCauses:     "Causas",
			models.CategoryTreatment:  "Tratamiento",
			models.CategoryPrevention: "Prevención",
		},
		Disclaimer:        "Esta información es solo para fines educativos. Consulte siempre a un profesional de la salud calificado para obtener consejo médico, diagnóstico o tratamiento.",
		Fallback:          "No encontré información confiable sobre ese tema. Intente reformular su pregunta o consulte a un profesional de la salud.",
		TranslationNotice: "La traducción no está disponible en este momento, por lo que esta respuesta se muestra en inglés.",
		Sources:           "Fuentes",
	},
	"fr": {
		Name: "Français",
		Headings: map[models.Category]string{
			models.CategoryDefinition: "Définition",
			models.CategorySymptoms:   "Symptômes",
			models.CategoryCauses:     "Causes",
			models.CategoryTreatment:  "Traitement",
			models.CategoryPrevention: "Prévention",
		},
		Disclaimer:        "Ces informations sont fournies à titre éducatif uniquement. Consultez toujours un professionnel de santé qualifié pour un avis médical, un diagnostic ou un traitement.",
		Fallback:          "Je n'ai pas trouvé d'informations fiables sur ce sujet. Essayez de reformuler votre question ou consultez un professionnel de santé.",
		TranslationNotice: "La traduction est actuellement indisponible, cette réponse est donc affichée en anglais.",
		Sources:           "Sources",
	},
}

// LabelsFor returns the labels for lang, falling back to English.
func LabelsFor(lang models.Language) Labels {
	if l, ok := labels[lang]; ok {
		return l
	}
	return labels["en"]
}

// Heading returns the localized heading for a category.
func (l Labels) Heading(c models.Category) string {
	if h, ok := l.Headings[c]; ok {
		return h
	}
	return string(c)
}
